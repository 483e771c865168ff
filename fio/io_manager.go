package fio

const DataFilePerm = 0644

type FileIOType = byte

const (
	// StandardFIO reads and writes through os.File
	StandardFIO FileIOType = iota
	// MemoryMap maps the file read-only
	MemoryMap
)

// IOManager is an interface that represents the file I/O operations on a snapshot file.
type IOManager interface {
	Read([]byte, int64) (int, error)
	Write([]byte) (int, error)
	// Sync can persist data to the disk
	Sync() error
	Close() error
	Size() (int64, error)
}

// NewIOManager opens filename with the requested IO type
func NewIOManager(filename string, ioType FileIOType) (IOManager, error) {
	switch ioType {
	case StandardFIO:
		return NewFileIOManager(filename)
	case MemoryMap:
		return NewMMapIOManager(filename)
	default:
		panic("unsupported io type")
	}
}

// ReadAll reads the whole content managed by m
func ReadAll(m IOManager) ([]byte, error) {
	size, err := m.Size()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if size == 0 {
		return buf, nil
	}
	n, err := m.Read(buf, 0)
	if err != nil && int64(n) != size {
		return nil, err
	}
	return buf, nil
}
