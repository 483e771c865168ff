package utils

import (
	"github.com/shirou/gopsutil/v3/disk"
	"os"
)

// AvailableDiskSize returns the free bytes of the filesystem holding dirPath
func AvailableDiskSize(dirPath string) (uint64, error) {
	if dirPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return 0, err
		}
		dirPath = wd
	}
	info, err := disk.Usage(dirPath)
	if err != nil {
		return 0, err
	}
	return info.Free, nil
}

func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
