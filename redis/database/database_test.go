package database

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Tuanzi-bug/tuanlite"
	"github.com/Tuanzi-bug/tuanlite/persist"
	"github.com/Tuanzi-bug/tuanlite/redis/interface/redis"
	"github.com/Tuanzi-bug/tuanlite/redis/parser"
	"github.com/Tuanzi-bug/tuanlite/redis/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestDB(t *testing.T) *DB {
	data, err := tuanlite.Open(tuanlite.DefaultOptions)
	require.NoError(t, err)
	persister, err := persist.Open(filepath.Join(t.TempDir(), "dump.json"), persist.DefaultOptions)
	require.NoError(t, err)
	db := MakeDB(data, persister)
	t.Cleanup(func() {
		_ = db.Close()
		_ = persister.Close()
	})
	return db
}

func toArgs(cmd ...string) [][]byte {
	args := make([][]byte, len(cmd))
	for i, s := range cmd {
		args[i] = []byte(s)
	}
	return args
}

func exec(db *DB, cmd ...string) redis.Reply {
	return db.Exec(nil, toArgs(cmd...))
}

func assertReply(t *testing.T, want redis.Reply, got redis.Reply) {
	t.Helper()
	assert.Equal(t, string(want.ToBytes()), string(got.ToBytes()))
}

func TestExec_Unknown(t *testing.T) {
	db := makeTestDB(t)
	assertReply(t, protocol.MakeUnknownCommandErrReply("flushall"), exec(db, "FLUSHALL"))
	assertReply(t, protocol.MakeErrReply("ERR empty command"), db.Exec(nil, nil))
}

func TestExec_UnknownNameWithNewline(t *testing.T) {
	db := makeTestDB(t)
	out := exec(db, "foo\r\n+OK").ToBytes()
	replies, err := parser.ParseBytes(out)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.True(t, protocol.IsErrorReply(replies[0]))
	assert.Equal(t, "-ERR unknown command 'foo  +ok'\r\n", string(out))

	replies, err = parser.ParseBytes(exec(db, "GET\na").ToBytes())
	require.NoError(t, err)
	assert.Len(t, replies, 1)
}

func TestExec_Arity(t *testing.T) {
	db := makeTestDB(t)
	cases := [][]string{
		{"GET"},
		{"GET", "a", "b"},
		{"SET", "k"},
		{"DEL"},
		{"INCR"},
		{"LPUSH", "k"},
		{"RPUSH", "k"},
		{"EXISTS"},
		{"PING", "x"},
		{"ECHO"},
		{"LRANGE", "k", "0"},
	}
	for _, c := range cases {
		reply := exec(db, c...)
		assert.True(t, protocol.IsErrorReply(reply), "%v", c)
		assert.Contains(t, string(reply.ToBytes()), "wrong number of arguments", "%v", c)
	}
	// rejected commands never touch the key space
	assert.Equal(t, 0, db.data.Len())
}

func TestPingEcho(t *testing.T) {
	db := makeTestDB(t)
	assertReply(t, protocol.MakePongReply(), exec(db, "ping"))
	assertReply(t, protocol.MakeBulkReply([]byte("hi there")), exec(db, "ECHO", "hi there"))
}

func TestSetGet(t *testing.T) {
	db := makeTestDB(t)
	assertReply(t, protocol.MakeNullBulkReply(), exec(db, "GET", "k"))
	assertReply(t, protocol.MakeOkReply(), exec(db, "SET", "k", "v"))
	assertReply(t, protocol.MakeBulkReply([]byte("v")), exec(db, "GET", "k"))
	assertReply(t, protocol.MakeOkReply(), exec(db, "set", "k", ""))
	assertReply(t, protocol.MakeBulkReply([]byte{}), exec(db, "get", "k"))
}

func TestEmptyKey(t *testing.T) {
	db := makeTestDB(t)
	assertReply(t, protocol.MakeNullBulkReply(), exec(db, "GET", ""))
	assertReply(t, protocol.MakeOkReply(), exec(db, "SET", "", "v"))
	assertReply(t, protocol.MakeBulkReply([]byte("v")), exec(db, "GET", ""))
	assertReply(t, protocol.MakeIntReply(1), exec(db, "DEL", ""))

	assertReply(t, protocol.MakeIntReply(1), exec(db, "INCR", ""))
	assertReply(t, protocol.MakeIntReply(2), exec(db, "INCR", ""))
	assertReply(t, protocol.MakeIntReply(1), exec(db, "DEL", ""))

	assertReply(t, protocol.MakeIntReply(2), exec(db, "RPUSH", "", "a", "b"))
	assertReply(t, protocol.MakeMultiBulkReply(toArgs("a", "b")), exec(db, "LRANGE", "", "0", "-1"))
	assertReply(t, protocol.MakeWrongTypeErrReply(), exec(db, "GET", ""))
}

func TestSet_ZeroTTL(t *testing.T) {
	db := makeTestDB(t)
	for _, opt := range []string{"EX", "PX"} {
		assertReply(t, protocol.MakeOkReply(), exec(db, "SET", "k", "v"))
		assertReply(t, protocol.MakeOkReply(), exec(db, "SET", "k", "v", opt, "0"))
		assertReply(t, protocol.MakeNullBulkReply(), exec(db, "GET", "k"))
		assertReply(t, protocol.MakeIntReply(0), exec(db, "EXISTS", "k"))
	}
	past := strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10)
	assertReply(t, protocol.MakeOkReply(), exec(db, "SET", "k", "v", "EXAT", past))
	assertReply(t, protocol.MakeIntReply(0), exec(db, "EXISTS", "k"))
}

func TestSet_Expire(t *testing.T) {
	db := makeTestDB(t)
	assertReply(t, protocol.MakeOkReply(), exec(db, "SET", "k", "v", "PX", "30"))
	assertReply(t, protocol.MakeIntReply(1), exec(db, "EXISTS", "k"))
	assert.Eventually(t, func() bool {
		return string(exec(db, "GET", "k").ToBytes()) == "$-1\r\n"
	}, time.Second, 5*time.Millisecond)

	assertReply(t, protocol.MakeOkReply(), exec(db, "SET", "k", "v", "ex", "100"))
	assertReply(t, protocol.MakeIntReply(100), exec(db, "TTL", "k"))
	pttl := exec(db, "PTTL", "k").(*protocol.IntReply)
	assert.InDelta(t, 100000, pttl.Code, 1000)

	future := time.Now().Add(time.Hour)
	assertReply(t, protocol.MakeOkReply(), exec(db, "SET", "a", "v", "PXAT", strconv.FormatInt(future.UnixMilli(), 10)))
	assertReply(t, protocol.MakeIntReply(3600), exec(db, "TTL", "a"))

	// a plain SET clears the deadline
	assertReply(t, protocol.MakeOkReply(), exec(db, "SET", "a", "w"))
	assertReply(t, protocol.MakeIntReply(-1), exec(db, "TTL", "a"))
	assertReply(t, protocol.MakeIntReply(-2), exec(db, "TTL", "missing"))
	assertReply(t, protocol.MakeIntReply(-2), exec(db, "PTTL", "missing"))
}

func TestSet_InvalidOptions(t *testing.T) {
	db := makeTestDB(t)
	assertReply(t, protocol.MakeOkReply(), exec(db, "SET", "k", "old"))
	cases := []struct {
		cmd  []string
		want redis.Reply
	}{
		{[]string{"SET", "k", "v", "EX"}, protocol.MakeSyntaxErrReply()},
		{[]string{"SET", "k", "v", "KEEP", "1"}, protocol.MakeSyntaxErrReply()},
		{[]string{"SET", "k", "v", "EX", "10", "PX", "10"}, protocol.MakeSyntaxErrReply()},
		{[]string{"SET", "k", "v", "EX", "ten"}, protocol.MakeErrReply("ERR value is not an integer or out of range")},
		{[]string{"SET", "k", "v", "EX", "9223372036854775807"}, protocol.MakeErrReply("ERR invalid expire time in 'set' command")},
		{[]string{"SET", "k", "v", "PXAT", "9223372036854775807"}, protocol.MakeErrReply("ERR invalid expire time in 'set' command")},
	}
	for _, c := range cases {
		assertReply(t, c.want, exec(db, c.cmd...))
	}
	// nothing above mutated the key
	assertReply(t, protocol.MakeBulkReply([]byte("old")), exec(db, "GET", "k"))
	assertReply(t, protocol.MakeIntReply(-1), exec(db, "TTL", "k"))
}

func TestDel(t *testing.T) {
	db := makeTestDB(t)
	exec(db, "SET", "a", "1")
	exec(db, "SET", "b", "2")
	exec(db, "RPUSH", "l", "x")
	assertReply(t, protocol.MakeIntReply(3), exec(db, "DEL", "a", "b", "l", "c"))
	assertReply(t, protocol.MakeIntReply(0), exec(db, "DEL", "a"))
	assertReply(t, protocol.MakeIntReply(0), exec(db, "DBSIZE"))
}

func TestIncrDecr(t *testing.T) {
	db := makeTestDB(t)
	assertReply(t, protocol.MakeIntReply(1), exec(db, "INCR", "n"))
	assertReply(t, protocol.MakeIntReply(2), exec(db, "INCR", "n"))
	assertReply(t, protocol.MakeIntReply(1), exec(db, "DECR", "n"))
	assertReply(t, protocol.MakeIntReply(-1), exec(db, "DECR", "m"))
	assertReply(t, protocol.MakeBulkReply([]byte("1")), exec(db, "GET", "n"))

	exec(db, "SET", "s", "abc")
	assertReply(t, protocol.MakeErrReply("ERR value is not an integer or out of range"), exec(db, "INCR", "s"))
	assertReply(t, protocol.MakeBulkReply([]byte("abc")), exec(db, "GET", "s"))

	exec(db, "SET", "max", "9223372036854775807")
	assertReply(t, protocol.MakeErrReply("ERR increment or decrement would overflow"), exec(db, "INCR", "max"))
	assertReply(t, protocol.MakeBulkReply([]byte("9223372036854775807")), exec(db, "GET", "max"))

	exec(db, "SET", "t", "5", "EX", "100")
	assertReply(t, protocol.MakeIntReply(6), exec(db, "INCR", "t"))
	assertReply(t, protocol.MakeIntReply(100), exec(db, "TTL", "t"))
}

func TestLists(t *testing.T) {
	db := makeTestDB(t)
	assertReply(t, protocol.MakeIntReply(3), exec(db, "LPUSH", "l", "a", "b", "c"))
	assertReply(t, protocol.MakeMultiBulkReply(toArgs("c", "b", "a")), exec(db, "LRANGE", "l", "0", "-1"))

	assertReply(t, protocol.MakeIntReply(3), exec(db, "RPUSH", "r", "a", "b", "c"))
	assertReply(t, protocol.MakeIntReply(4), exec(db, "RPUSH", "r", "d"))
	assertReply(t, protocol.MakeMultiBulkReply(toArgs("a", "b", "c", "d")), exec(db, "LRANGE", "r", "0", "-1"))
	assertReply(t, protocol.MakeMultiBulkReply(toArgs("b", "c")), exec(db, "LRANGE", "r", "1", "2"))
	assertReply(t, protocol.MakeEmptyMultiBulkReply(), exec(db, "LRANGE", "r", "5", "10"))
	assertReply(t, protocol.MakeEmptyMultiBulkReply(), exec(db, "LRANGE", "missing", "0", "-1"))
	assertReply(t, protocol.MakeErrReply("ERR value is not an integer or out of range"), exec(db, "LRANGE", "r", "a", "1"))
	assertReply(t, protocol.MakeIntReply(4), exec(db, "LLEN", "r"))
	assertReply(t, protocol.MakeIntReply(0), exec(db, "LLEN", "missing"))
}

func TestWrongType(t *testing.T) {
	db := makeTestDB(t)
	exec(db, "SET", "s", "1")
	exec(db, "RPUSH", "l", "x")

	wrongType := protocol.MakeWrongTypeErrReply()
	assertReply(t, wrongType, exec(db, "LPUSH", "s", "a"))
	assertReply(t, wrongType, exec(db, "RPUSH", "s", "a"))
	assertReply(t, wrongType, exec(db, "LLEN", "s"))
	assertReply(t, wrongType, exec(db, "LRANGE", "s", "0", "-1"))
	assertReply(t, wrongType, exec(db, "GET", "l"))
	assertReply(t, wrongType, exec(db, "INCR", "l"))
	assertReply(t, wrongType, exec(db, "DECR", "l"))

	assertReply(t, protocol.MakeBulkReply([]byte("1")), exec(db, "GET", "s"))
	assertReply(t, protocol.MakeMultiBulkReply(toArgs("x")), exec(db, "LRANGE", "l", "0", "-1"))

	// SET replaces any kind
	assertReply(t, protocol.MakeOkReply(), exec(db, "SET", "l", "v"))
	assertReply(t, protocol.MakeBulkReply([]byte("v")), exec(db, "GET", "l"))
}

func TestExpiredKeyLosesType(t *testing.T) {
	db := makeTestDB(t)
	exec(db, "SET", "k", "v", "PX", "10")
	time.Sleep(20 * time.Millisecond)
	assertReply(t, protocol.MakeIntReply(1), exec(db, "LPUSH", "k", "a"))
	assertReply(t, protocol.MakeIntReply(-1), exec(db, "TTL", "k"))
}

func TestConcurrentIncr(t *testing.T) {
	db := makeTestDB(t)
	const clients, rounds = 10, 200
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				exec(db, "INCR", "counter")
			}
		}()
	}
	wg.Wait()
	assertReply(t, protocol.MakeBulkReply([]byte(fmt.Sprint(clients*rounds))), exec(db, "GET", "counter"))
}

func TestSave(t *testing.T) {
	db := makeTestDB(t)
	exec(db, "SET", "a", "1")
	exec(db, "RPUSH", "l", "x", "y")
	assertReply(t, protocol.MakeOkReply(), exec(db, "SAVE"))

	restored, err := tuanlite.Open(tuanlite.DefaultOptions)
	require.NoError(t, err)
	defer restored.Close()
	n, err := db.persister.Load(restored)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	noSnapshot := MakeDB(restored, nil)
	assert.True(t, protocol.IsErrorReply(exec(noSnapshot, "SAVE")))
	assertReply(t, protocol.MakeIntReply(2), exec(noSnapshot, "DBSIZE"))
}

func TestKeys(t *testing.T) {
	db := makeTestDB(t)
	exec(db, "SET", "user:1", "a")
	exec(db, "SET", "user:2", "b")
	exec(db, "RPUSH", "queue", "x")
	exec(db, "SET", "gone", "x", "PX", "1")
	time.Sleep(5 * time.Millisecond)

	assertReply(t, protocol.MakeMultiBulkReply(toArgs("queue", "user:1", "user:2")), exec(db, "KEYS", "*"))
	assertReply(t, protocol.MakeMultiBulkReply(toArgs("user:1", "user:2")), exec(db, "KEYS", "user:*"))
	assertReply(t, protocol.MakeMultiBulkReply(toArgs("user:2")), exec(db, "KEYS", "user:[2-9]"))
	assertReply(t, protocol.MakeEmptyMultiBulkReply(), exec(db, "KEYS", "nothing*"))
}
