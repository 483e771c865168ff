package data

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"
)

const encBase64 = "base64"

var ErrInvalidRecord = errors.New("invalid snapshot record")

// Record is the logical snapshot form of one key.
type Record struct {
	Key       []byte
	Value     *Entity
	ExpiresAt time.Time // zero means no expiry
}

// HasExpiry reports whether the record carries a deadline
func (r *Record) HasExpiry() bool {
	return !r.ExpiresAt.IsZero()
}

// Expired reports whether the record deadline is at or before now
func (r *Record) Expired(now time.Time) bool {
	return r.HasExpiry() && !r.ExpiresAt.After(now)
}

// jsonRecord is the on-disk layout:
// {"key":"k","value":"v"|["a","b"],"expiresAt":"2006-01-02T15:04:05.999999999Z07:00","enc":"base64"}
type jsonRecord struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
	Enc       string          `json:"enc,omitempty"`
}

// MarshalJSON writes plain strings when every byte string of the record is valid UTF-8,
// otherwise every string is base64 and enc is set.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.Value == nil {
		return nil, ErrInvalidRecord
	}
	binary := !utf8.Valid(r.Key)
	if r.Value.Kind == KindList {
		for _, v := range r.Value.List {
			if !utf8.Valid(v) {
				binary = true
				break
			}
		}
	} else if !utf8.Valid(r.Value.Str) {
		binary = true
	}
	encode := func(b []byte) string {
		if binary {
			return base64.StdEncoding.EncodeToString(b)
		}
		return string(b)
	}

	var value []byte
	var err error
	switch r.Value.Kind {
	case KindString:
		value, err = json.Marshal(encode(r.Value.Str))
	case KindList:
		items := make([]string, len(r.Value.List))
		for i, v := range r.Value.List {
			items[i] = encode(v)
		}
		value, err = json.Marshal(items)
	default:
		return nil, ErrInvalidRecord
	}
	if err != nil {
		return nil, err
	}

	jr := jsonRecord{Key: encode(r.Key), Value: value}
	if r.HasExpiry() {
		at := r.ExpiresAt.UTC()
		jr.ExpiresAt = &at
	}
	if binary {
		jr.Enc = encBase64
	}
	return json.Marshal(jr)
}

func (r *Record) UnmarshalJSON(buf []byte) error {
	var jr jsonRecord
	if err := json.Unmarshal(buf, &jr); err != nil {
		return err
	}
	decode := func(s string) ([]byte, error) {
		switch jr.Enc {
		case "":
			return []byte(s), nil
		case encBase64:
			return base64.StdEncoding.DecodeString(s)
		default:
			return nil, ErrInvalidRecord
		}
	}

	key, err := decode(jr.Key)
	if err != nil {
		return err
	}
	if len(jr.Value) == 0 {
		return ErrInvalidRecord
	}
	var entity *Entity
	switch jr.Value[0] {
	case '"':
		var s string
		if err := json.Unmarshal(jr.Value, &s); err != nil {
			return err
		}
		b, err := decode(s)
		if err != nil {
			return err
		}
		entity = NewString(b)
	case '[':
		var items []string
		if err := json.Unmarshal(jr.Value, &items); err != nil {
			return err
		}
		list := make([][]byte, len(items))
		for i, s := range items {
			if list[i], err = decode(s); err != nil {
				return err
			}
		}
		entity = NewList(list)
	default:
		return ErrInvalidRecord
	}

	r.Key = key
	r.Value = entity
	r.ExpiresAt = time.Time{}
	if jr.ExpiresAt != nil {
		r.ExpiresAt = *jr.ExpiresAt
	}
	return nil
}
