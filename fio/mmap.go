package fio

import (
	"errors"
	"golang.org/x/exp/mmap"
	"os"
)

var ErrReadOnly = errors.New("memory mapped file is read only")

// MMap is a read-only memory mapped file
type MMap struct {
	readerAt *mmap.ReaderAt
}

func NewMMapIOManager(filename string) (*MMap, error) {
	f, err := os.OpenFile(filename, os.O_CREATE, DataFilePerm)
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	readerAt, err := mmap.Open(filename)
	if err != nil {
		return nil, err
	}
	return &MMap{readerAt: readerAt}, nil
}

func (m *MMap) Read(b []byte, offset int64) (int, error) {
	return m.readerAt.ReadAt(b, offset)
}

func (m *MMap) Write([]byte) (int, error) {
	return 0, ErrReadOnly
}

// Sync is a no-op, nothing is ever written through a mapping
func (m *MMap) Sync() error {
	return nil
}

func (m *MMap) Close() error {
	return m.readerAt.Close()
}

func (m *MMap) Size() (int64, error) {
	return int64(m.readerAt.Len()), nil
}
