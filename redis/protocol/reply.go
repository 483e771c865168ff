package protocol

import (
	"bytes"
	"github.com/Tuanzi-bug/tuanlite/redis/interface/redis"
	"strconv"
	"strings"
)

var (
	// CRLF is the line separator of redis serialization protocol
	CRLF = "\r\n"

	lineReplacer = strings.NewReplacer("\r", " ", "\n", " ")
)

// line 状态行和错误行不能包含换行，否则一个回复会被拆成两个
func line(prefix byte, s string) []byte {
	if strings.ContainsAny(s, "\r\n") {
		s = lineReplacer.Replace(s)
	}
	buf := make([]byte, 0, len(s)+3)
	buf = append(buf, prefix)
	buf = append(buf, s...)
	return append(buf, CRLF...)
}

type BulkReply struct {
	Arg []byte
}

func MakeBulkReply(arg []byte) *BulkReply {
	return &BulkReply{Arg: arg}
}

// ToBytes marshal redis.Reply 例子："$5\r\nvalue\r\n"
func (r *BulkReply) ToBytes() []byte {
	if r.Arg == nil {
		return nullBulkBytes
	}
	var buf bytes.Buffer
	buf.Grow(1 + 20 + 2 + len(r.Arg) + 2)
	buf.WriteString("$")
	buf.WriteString(strconv.Itoa(len(r.Arg)))
	buf.WriteString(CRLF)
	buf.Write(r.Arg)
	buf.WriteString(CRLF)
	return buf.Bytes()
}

// MultiBulkReply is an array of bulk strings, nil elements encode as $-1
type MultiBulkReply struct {
	Args [][]byte
}

func MakeMultiBulkReply(args [][]byte) *MultiBulkReply {
	return &MultiBulkReply{Args: args}
}

func (r *MultiBulkReply) ToBytes() []byte {
	var buf bytes.Buffer

	argLen := len(r.Args)
	bufLen := 1 + len(strconv.Itoa(argLen)) + 2 // 类型+长度+crlf
	for _, arg := range r.Args {
		if arg == nil {
			bufLen += 3 + 2 // $-1 + crlf
		} else {
			bufLen += 1 + len(strconv.Itoa(len(arg))) + 2 + len(arg) + 2 // $+正文长度+crlf+实际内容+crlf。
		}
	}

	buf.Grow(bufLen)
	buf.WriteString("*")
	buf.WriteString(strconv.Itoa(argLen))
	buf.WriteString(CRLF)
	for _, arg := range r.Args {
		if arg == nil {
			buf.WriteString("$-1")
			buf.WriteString(CRLF)
		} else {
			buf.WriteString("$")
			buf.WriteString(strconv.Itoa(len(arg)))
			buf.WriteString(CRLF)
			buf.Write(arg)
			buf.WriteString(CRLF)
		}
	}
	return buf.Bytes()
}

// MultiRawReply is an array of arbitrary replies, used for nested arrays
type MultiRawReply struct {
	Replies []redis.Reply
}

func MakeMultiRawReply(replies []redis.Reply) *MultiRawReply {
	return &MultiRawReply{Replies: replies}
}

func (r *MultiRawReply) ToBytes() []byte {
	var buf bytes.Buffer
	buf.WriteString("*")
	buf.WriteString(strconv.Itoa(len(r.Replies)))
	buf.WriteString(CRLF)
	for _, reply := range r.Replies {
		buf.Write(reply.ToBytes())
	}
	return buf.Bytes()
}

// StatusReply 回复状态：以"+" 开始， 如："+OK\r\n"
type StatusReply struct {
	Status string
}

func MakeStatusReply(status string) *StatusReply {
	return &StatusReply{Status: status}
}

func (r *StatusReply) ToBytes() []byte {
	return line('+', r.Status)
}

// IntReply 整数：以":"开始，如：":1\r\n"
type IntReply struct {
	Code int64
}

func MakeIntReply(code int64) *IntReply {
	return &IntReply{Code: code}
}

func (r *IntReply) ToBytes() []byte {
	return []byte(":" + strconv.FormatInt(r.Code, 10) + CRLF)
}

// ErrorReply is a protocol error reply
type ErrorReply interface {
	Error() string
	ToBytes() []byte
}

// StandardErrReply 标准的错误：以"-" 开始，如："-ERR Invalid Synatx\r\n"
type StandardErrReply struct {
	Status string
}

func MakeErrReply(status string) *StandardErrReply {
	return &StandardErrReply{
		Status: status,
	}
}

func (r *StandardErrReply) ToBytes() []byte {
	return line('-', r.Status)
}

func (r *StandardErrReply) Error() string {
	return r.Status
}

// IsErrorReply returns true if the given protocol is error
func IsErrorReply(reply redis.Reply) bool {
	return reply.ToBytes()[0] == '-'
}
