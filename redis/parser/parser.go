package parser

import (
	"bytes"
	"errors"
	"io"
	"runtime/debug"
	"strconv"

	"github.com/Tuanzi-bug/tuanlite/redis/interface/redis"
	"github.com/Tuanzi-bug/tuanlite/redis/protocol"
	"github.com/hdt3213/godis/lib/logger"
)

const (
	maxBulkLen   = 512 << 20
	maxArrayLen  = 1 << 20
	maxInlineLen = 64 << 10
	maxDepth     = 32
	readSize     = 4096
)

// ErrIncomplete means the buffered bytes are a prefix of a frame, more input is needed
var ErrIncomplete = errors.New("incomplete frame")

// ProtocolError is a frame that can never become valid, whatever bytes follow
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Msg
}

func protocolError(msg string) error {
	return &ProtocolError{Msg: msg}
}

// IsProtocolError tells malformed input apart from transport errors
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// Payload stores redis.Reply or error
type Payload struct {
	Data redis.Reply
	Err  error
}

// Decoder turns a growing byte buffer into RESP values. Input may be fed in chunks of any
// size, a frame split over several Feed calls decodes once its last byte arrives.
//
// The frame at the head of the buffer is scanned incrementally: each Feed only looks at the
// new bytes, and values are built once, when the frame is complete. Memory held for a frame
// in progress is bounded by the bytes received, not by the lengths its headers declare.
type Decoder struct {
	buf []byte
	off int // start of the bytes not yet decoded

	scanned int     // bytes of the head frame already checked
	pending []int64 // elements still expected by each open array, innermost last
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends bytes read from the transport
func (d *Decoder) Feed(b []byte) {
	if d.off > 0 {
		// 丢弃已解码的数据
		n := copy(d.buf, d.buf[d.off:])
		d.buf = d.buf[:n]
		d.off = 0
	}
	d.buf = append(d.buf, b...)
}

// Buffered returns the number of bytes not yet decoded
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.off
}

// Next decodes the next complete value. It returns ErrIncomplete when the buffer holds no
// complete frame and a *ProtocolError when the buffered frame is malformed.
func (d *Decoder) Next() (redis.Reply, error) {
	for d.off < len(d.buf) {
		buf := d.buf[d.off:]
		end, err := d.scan(buf)
		if err != nil {
			return nil, err
		}
		reply, n, err := parse(buf[:end], 0)
		if err != nil {
			return nil, err
		}
		d.off += n
		d.scanned = 0
		d.pending = d.pending[:0]
		// 忽略空行
		if reply == nil {
			continue
		}
		return reply, nil
	}
	return nil, ErrIncomplete
}

// scan resumes checking the frame at the head of buf and returns its length once every
// byte of it is buffered.
func (d *Decoder) scan(buf []byte) (int, error) {
	if d.scanned == 0 && !isTypePrefix(buf[0]) {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			if len(buf) > maxInlineLen {
				return 0, protocolError("too big inline request")
			}
			return 0, ErrIncomplete
		}
		return idx + 1, nil
	}
	for {
		if d.scanned >= len(buf) {
			return 0, ErrIncomplete
		}
		if !isTypePrefix(buf[d.scanned]) {
			return 0, protocolError("expected '$', got '" + string(buf[d.scanned]) + "'")
		}
		size, elements, err := scanValue(buf[d.scanned:])
		if err != nil {
			return 0, err
		}
		d.scanned += size
		if elements > 0 {
			if len(d.pending) >= maxDepth {
				return 0, protocolError("nested too deep")
			}
			d.pending = append(d.pending, elements)
			continue
		}
		// a finished value may complete the arrays around it
		for len(d.pending) > 0 {
			top := len(d.pending) - 1
			d.pending[top]--
			if d.pending[top] > 0 {
				break
			}
			d.pending = d.pending[:top]
		}
		if len(d.pending) == 0 {
			return d.scanned, nil
		}
	}
}

// scanValue checks the value at the head of buf without decoding it. For an array header
// it returns the element count that follows, for anything else the whole value size.
func scanValue(buf []byte) (int, int64, error) {
	line, n, err := readLine(buf)
	if err != nil {
		return 0, 0, err
	}
	switch line[0] {
	case ':':
		if _, err := strconv.ParseInt(string(line[1:]), 10, 64); err != nil {
			return 0, 0, protocolError("illegal number " + string(line[1:]))
		}
	case '$':
		strLen, err := bulkLen(line)
		if err != nil {
			return 0, 0, err
		} else if strLen == -1 {
			return n, 0, nil
		}
		end := n + int(strLen)
		if len(buf) < end+2 {
			return 0, 0, ErrIncomplete
		}
		if buf[end] != '\r' || buf[end+1] != '\n' {
			return 0, 0, protocolError("bulk string is not terminated by CRLF")
		}
		return end + 2, 0, nil
	case '*':
		elements, err := arrayLen(line)
		if err != nil {
			return 0, 0, err
		}
		// *0 and *-1 are complete values
		return n, max(elements, 0), nil
	}
	return n, 0, nil
}

func isTypePrefix(b byte) bool {
	switch b {
	case '+', '-', ':', '$', '*':
		return true
	}
	return false
}

// ParseStream reads data from io.Reader and send payloads through channel.
// The channel is closed after the first error, a protocol error included.
func ParseStream(reader io.Reader) <-chan *Payload {
	ch := make(chan *Payload)
	go parse0(reader, ch)
	return ch
}

// ParseBytes reads data from []byte and return all replies
func ParseBytes(data []byte) ([]redis.Reply, error) {
	d := NewDecoder()
	d.Feed(data)
	var results []redis.Reply
	for {
		reply, err := d.Next()
		if err == ErrIncomplete {
			if d.Buffered() > 0 {
				return results, io.ErrUnexpectedEOF
			}
			return results, nil
		}
		if err != nil {
			return nil, err
		}
		results = append(results, reply)
	}
}

// ParseOne reads data from []byte and return the first payload
func ParseOne(data []byte) (redis.Reply, error) {
	d := NewDecoder()
	d.Feed(data)
	reply, err := d.Next()
	if err == ErrIncomplete {
		return nil, io.ErrUnexpectedEOF
	}
	return reply, err
}

func parse0(rawReader io.Reader, ch chan<- *Payload) {
	// 保证程序不会因为 panic 而退出
	defer func() {
		if err := recover(); err != nil {
			logger.Error(err, string(debug.Stack()))
		}
	}()
	defer close(ch)

	decoder := NewDecoder()
	chunk := make([]byte, readSize)
	for {
		for {
			reply, err := decoder.Next()
			if err == ErrIncomplete {
				break
			}
			if err != nil {
				ch <- &Payload{Err: err}
				return
			}
			ch <- &Payload{Data: reply}
		}
		n, err := rawReader.Read(chunk)
		if n > 0 {
			decoder.Feed(chunk[:n])
			continue
		}
		if err != nil {
			if err == io.EOF && decoder.Buffered() > 0 {
				err = io.ErrUnexpectedEOF
			}
			ch <- &Payload{Err: err}
			return
		}
	}
}

// parse decodes one value at the head of buf and returns it with the number of bytes consumed.
// A blank inline line yields a nil reply.
func parse(buf []byte, depth int) (redis.Reply, int, error) {
	if depth > maxDepth {
		return nil, 0, protocolError("nested too deep")
	}
	if !isTypePrefix(buf[0]) {
		return parseInline(buf)
	}

	line, n, err := readLine(buf)
	if err != nil {
		return nil, 0, err
	}
	/*
		RESP 通过第一个字符来表示格式.
			简单字符串：以"+" 开始， 如："+OK\r\n"
			错误：以"-" 开始，如："-ERR Invalid Synatx\r\n"
			整数：以":"开始，如：":1\r\n"
			字符串：以 $ 开始
			数组：以 * 开始
	*/
	switch line[0] {
	case '+':
		return protocol.MakeStatusReply(string(line[1:])), n, nil
	case '-':
		return protocol.MakeErrReply(string(line[1:])), n, nil
	case ':':
		value, err := strconv.ParseInt(string(line[1:]), 10, 64)
		if err != nil {
			return nil, 0, protocolError("illegal number " + string(line[1:]))
		}
		return protocol.MakeIntReply(value), n, nil
	case '$':
		return parseBulkString(line, buf, n)
	default:
		return parseArray(line, buf, n, depth)
	}
}

// bulkLen 解析 $ 行的长度，-1 表示 nil
func bulkLen(header []byte) (int64, error) {
	strLen, err := strconv.ParseInt(string(header[1:]), 10, 64)
	// 处理非法情况：长度小于-1，过大，或者解析失败
	if err != nil || strLen < -1 || strLen > maxBulkLen {
		return 0, protocolError("illegal bulk string header: " + string(header))
	}
	return strLen, nil
}

// arrayLen 解析 * 行的元素个数，-1 表示 nil
func arrayLen(header []byte) (int64, error) {
	n, err := strconv.ParseInt(string(header[1:]), 10, 64)
	if err != nil || n < -1 || n > maxArrayLen {
		return 0, protocolError("illegal array header: " + string(header))
	}
	return n, nil
}

// 解析 bulk string 格式，例子： $3\r\nSET\r\n
func parseBulkString(header []byte, buf []byte, n int) (redis.Reply, int, error) {
	// 第一行为 $+正文长度，第二行为实际内容。
	strLen, err := bulkLen(header)
	if err != nil {
		return nil, 0, err
	} else if strLen == -1 { // $-1 表示 nil
		return protocol.MakeNullBulkReply(), n, nil
	}
	// 读取实际内容 +2 是因为 末尾\r\n
	end := n + int(strLen)
	if len(buf) < end+2 {
		return nil, 0, ErrIncomplete
	}
	if buf[end] != '\r' || buf[end+1] != '\n' {
		return nil, 0, protocolError("bulk string is not terminated by CRLF")
	}
	body := make([]byte, strLen)
	copy(body, buf[n:end])
	return protocol.MakeBulkReply(body), end + 2, nil
}

// 解析数组形式 例子：*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n
func parseArray(header []byte, buf []byte, n int, depth int) (redis.Reply, int, error) {
	// Array 格式第一行为 "*"+数组长度，其后是相应数量的元素
	elements, err := arrayLen(header)
	if err != nil {
		return nil, 0, err
	} else if elements == -1 {
		return protocol.MakeNullBulkReply(), n, nil
	}

	// 每个元素至少 3 字节，预分配不超过已收到的数据能容纳的个数
	hint := elements
	if rest := int64(len(buf)-n) / 3; hint > rest {
		hint = rest
	}
	args := make([][]byte, 0, hint)
	replies := make([]redis.Reply, 0, hint)
	allBulk := true
	offset := n
	for i := int64(0); i < elements; i++ {
		if offset >= len(buf) {
			return nil, 0, ErrIncomplete
		}
		if !isTypePrefix(buf[offset]) {
			return nil, 0, protocolError("expected '$', got '" + string(buf[offset]) + "'")
		}
		reply, size, err := parse(buf[offset:], depth+1)
		if err != nil {
			return nil, 0, err
		}
		offset += size
		replies = append(replies, reply)
		switch r := reply.(type) {
		case *protocol.BulkReply:
			args = append(args, r.Arg)
		case *protocol.NullBulkReply:
			args = append(args, nil)
		default:
			allBulk = false
		}
	}
	if allBulk {
		return protocol.MakeMultiBulkReply(args), offset, nil
	}
	return protocol.MakeMultiRawReply(replies), offset, nil
}

// parseInline handles telnet style requests: one line of space separated arguments
func parseInline(buf []byte) (redis.Reply, int, error) {
	idx := bytes.IndexByte(buf, '\n')
	if idx < 0 {
		if len(buf) > maxInlineLen {
			return nil, 0, protocolError("too big inline request")
		}
		return nil, 0, ErrIncomplete
	}
	line := bytes.TrimSuffix(buf[:idx], []byte{'\r'})
	fields := bytes.Fields(line)
	if len(fields) == 0 {
		return nil, idx + 1, nil
	}
	args := make([][]byte, len(fields))
	for i, field := range fields {
		args[i] = append([]byte(nil), field...)
	}
	return protocol.MakeMultiBulkReply(args), idx + 1, nil
}

// readLine returns the line at the head of buf without CRLF and the bytes consumed
func readLine(buf []byte) ([]byte, int, error) {
	idx := bytes.Index(buf, []byte{'\r', '\n'})
	if idx < 0 {
		if len(buf) > maxInlineLen {
			return nil, 0, protocolError("line too long")
		}
		return nil, 0, ErrIncomplete
	}
	if idx < 2 && buf[0] != '+' && buf[0] != '-' {
		return nil, 0, protocolError("empty header: " + string(buf[:idx]))
	}
	return buf[:idx], idx + 2, nil
}
