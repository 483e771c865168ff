package tuanlite

import (
	"errors"
	"github.com/Tuanzi-bug/tuanlite/index"
	"time"
)

type Options struct {
	// Shards is the number of independently locked partitions of the key space
	Shards int

	IndexType index.IndexType

	// SweepInterval is the period of the active expire pass, 0 disables it
	SweepInterval time.Duration

	// SweepLimit bounds the keys one pass may evict from a single shard
	SweepLimit int
}

func checkOptions(options Options) error {
	if options.Shards <= 0 {
		return errors.New("shard count must be greater than 0")
	}
	if options.IndexType != index.Btree && options.IndexType != index.Art {
		return errors.New("unsupported index type")
	}
	if options.SweepInterval < 0 {
		return errors.New("sweep interval must not be negative")
	}
	if options.SweepInterval > 0 && options.SweepLimit <= 0 {
		return errors.New("sweep limit must be greater than 0")
	}
	return nil
}

var DefaultOptions = Options{
	Shards:        16,
	IndexType:     index.Btree,
	SweepInterval: 100 * time.Millisecond,
	SweepLimit:    20,
}

type IteratorOptions struct {
	// Prefix limits iteration to keys starting with it
	Prefix  []byte
	Reverse bool
}

var DefaultIteratorOptions = IteratorOptions{
	Prefix:  nil,
	Reverse: false,
}
