package data

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_MarshalJSON_PlainString(t *testing.T) {
	r := Record{Key: []byte("name"), Value: NewString([]byte("tuan"))}
	buf, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"name","value":"tuan"}`, string(buf))
}

func TestRecord_MarshalJSON_List(t *testing.T) {
	at := time.Date(2030, 1, 2, 3, 4, 5, 6, time.UTC)
	r := Record{Key: []byte("l"), Value: NewList([][]byte{[]byte("a"), []byte("b")}), ExpiresAt: at}
	buf, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"l","value":["a","b"],"expiresAt":"2030-01-02T03:04:05.000000006Z"}`, string(buf))

	var back Record
	require.NoError(t, json.Unmarshal(buf, &back))
	assert.Equal(t, []byte("l"), back.Key)
	assert.Equal(t, KindList, back.Value.Kind)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, back.Value.List)
	assert.True(t, at.Equal(back.ExpiresAt))
}

func TestRecord_MarshalJSON_Binary(t *testing.T) {
	r := Record{Key: []byte("k"), Value: NewString([]byte{0xff, 0x00, 0xfe})}
	buf, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(buf), `"enc":"base64"`)

	var back Record
	require.NoError(t, json.Unmarshal(buf, &back))
	assert.Equal(t, []byte("k"), back.Key)
	assert.Equal(t, []byte{0xff, 0x00, 0xfe}, back.Value.Str)
	assert.False(t, back.HasExpiry())
}

func TestRecord_UnmarshalJSON_Invalid(t *testing.T) {
	cases := []string{
		`{"key":"k"}`,
		`{"key":"k","value":12}`,
		`{"key":"k","value":"v","enc":"rot13"}`,
		`{"key":"k","value":"!!","enc":"base64"}`,
	}
	for _, c := range cases {
		var r Record
		assert.Error(t, json.Unmarshal([]byte(c), &r), c)
	}
}

func TestRecord_Expired(t *testing.T) {
	now := time.Now()
	r := Record{Key: []byte("k"), Value: NewString(nil)}
	assert.False(t, r.Expired(now))
	r.ExpiresAt = now
	assert.True(t, r.Expired(now))
	r.ExpiresAt = now.Add(time.Second)
	assert.False(t, r.Expired(now))
}

func TestEntity_Clone(t *testing.T) {
	e := NewList([][]byte{[]byte("a")})
	c := e.Clone()
	c.List = append(c.List, []byte("b"))
	c.List[0] = []byte("z")
	assert.Equal(t, [][]byte{[]byte("a")}, e.List)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, NewString([]byte("x")).Len())
	assert.Nil(t, (*Entity)(nil).Clone())
}
