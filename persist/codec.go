package persist

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Tuanzi-bug/tuanlite/data"
	"github.com/Tuanzi-bug/tuanlite/fio"
)

type codec interface {
	// writeFile writes the records to a fresh file at path and syncs it.
	// encoded[i] is the JSON form of records[i].
	writeFile(path string, records []data.Record, encoded [][]byte) error
	readFile(path string) ([]data.Record, error)
}

func newCodec(options Options) (codec, error) {
	switch options.Format {
	case FormatJSON, "":
		ioType := fio.StandardFIO
		if options.MMapAtStartup {
			ioType = fio.MemoryMap
		}
		return &jsonCodec{ioType: ioType}, nil
	case FormatBolt:
		return &boltCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, options.Format)
	}
}

// jsonCodec stores {"entries":[record, ...]} in one file.
type jsonCodec struct {
	ioType fio.FileIOType
}

type jsonSnapshot struct {
	Entries []data.Record `json:"entries"`
}

func (c *jsonCodec) writeFile(path string, _ []data.Record, encoded [][]byte) error {
	var buf bytes.Buffer
	buf.WriteString(`{"entries":[`)
	for i, record := range encoded {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(record)
	}
	buf.WriteString("]}\n")

	file, err := fio.NewFileIOManager(path)
	if err != nil {
		return err
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func (c *jsonCodec) readFile(path string) ([]data.Record, error) {
	file, err := fio.NewIOManager(path, c.ioType)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	content, err := fio.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, nil
	}
	var snapshot jsonSnapshot
	if err := json.Unmarshal(content, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedSnapshot, err)
	}
	return snapshot.Entries, nil
}
