package persist

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Tuanzi-bug/tuanlite/data"
	"github.com/Tuanzi-bug/tuanlite/fio"
	"go.etcd.io/bbolt"
)

var entriesBucketName = []byte("entries")

// keyPrefix is put in front of every bucket key, bbolt refuses zero-length keys.
const keyPrefix = 'k'

// boltCodec stores one bbolt file with a bucket mapping each key to its JSON record.
type boltCodec struct{}

func boltKey(key []byte) []byte {
	k := make([]byte, 0, len(key)+1)
	k = append(k, keyPrefix)
	return append(k, key...)
}

func (c *boltCodec) writeFile(path string, records []data.Record, encoded [][]byte) error {
	opts := *bbolt.DefaultOptions
	opts.NoSync = true
	opts.Timeout = time.Second
	db, err := bbolt.Open(path, fio.DataFilePerm, &opts)
	if err != nil {
		return err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(entriesBucketName)
		if err != nil {
			return err
		}
		for i := range records {
			if err := b.Put(boltKey(records[i].Key), encoded[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return err
	}
	if err := db.Sync(); err != nil {
		_ = db.Close()
		return err
	}
	return db.Close()
}

func (c *boltCodec) readFile(path string) ([]data.Record, error) {
	db, err := bbolt.Open(path, fio.DataFilePerm, &bbolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var records []data.Record
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(entriesBucketName)
		if b == nil {
			return fmt.Errorf("%w: missing bucket %s", ErrCorruptedSnapshot, entriesBucketName)
		}
		return b.ForEach(func(k, v []byte) error {
			var record data.Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("%w: key %q: %v", ErrCorruptedSnapshot, k, err)
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
