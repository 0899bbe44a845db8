package storage

import (
	"io"
	"path/filepath"
	"strconv"
)

type UsageStats struct {
	TotalBytes uint64
	FreeBytes  uint64
}

type Storage interface {
	Read(path string) (io.ReadCloser, error)

	Write(path string, data io.Reader) error

	Delete(path string) error

	List(path string) ([]string, error)

	Exists(path string) (bool, error)

	Size(path string) (int64, error)

	Usage() (UsageStats, error)

	Location() string
}

const reportsDir = "reports"

func ReportPath(reportId int64) string {
	return filepath.Join(reportsDir, strconv.FormatInt(reportId, 10))
}

func ReportPhotoDir(reportId int64) string {
	return filepath.Join(ReportPath(reportId), "photos")
}

func ReportPhotoPath(reportId int64, filename string) string {
	return filepath.Join(ReportPhotoDir(reportId), filename)
}

func ReportsDir() string {
	return reportsDir
}
