package logcollection

import (
	"os"
	"path/filepath"

	"github.com/core-tools/hsu-netstatus/pkg/errors"
	"github.com/core-tools/hsu-netstatus/pkg/logging"
)

const (
	DirectoryMode os.FileMode = 0755
	LogFileMode   os.FileMode = 0644
)

// LogDirectory resolves and creates analyzer log files under one directory
type LogDirectory struct {
	path   string
	logger logging.Logger
}

func NewLogDirectory(path string, logger logging.Logger) *LogDirectory {
	return &LogDirectory{
		path:   filepath.Clean(path),
		logger: logger,
	}
}

func (d *LogDirectory) Path() string {
	return d.path
}

// Ensure creates the directory and any missing parents; an existing directory is fine
func (d *LogDirectory) Ensure() error {
	info, err := os.Stat(d.path)
	if err == nil {
		if !info.IsDir() {
			return errors.NewConflictError("log directory path is not a directory", nil).WithContext("log_dir", d.path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return errors.NewIOError("failed to inspect log directory", err).WithContext("log_dir", d.path)
	}

	if err := os.MkdirAll(d.path, DirectoryMode); err != nil {
		return errors.NewIOError("failed to create log directory", err).WithContext("log_dir", d.path)
	}
	d.logger.Infof("Log directory created: %s", d.path)
	return nil
}

// GenerateLogFilePath joins a log file name onto the directory
func (d *LogDirectory) GenerateLogFilePath(fileName string) string {
	return filepath.Join(d.path, fileName)
}

// OpenLogFile creates or truncates a log file for writing
func (d *LogDirectory) OpenLogFile(fileName string) (*LogFile, error) {
	path := d.GenerateLogFilePath(fileName)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, LogFileMode)
	if err != nil {
		return nil, errors.NewIOError("failed to open log file", err).WithContext("log_file", path)
	}

	d.logger.Debugf("Log file opened: %s", path)
	return &LogFile{file: file, path: path}, nil
}

// Size returns the current size of a log file in bytes
func (d *LogDirectory) Size(fileName string) (int64, error) {
	path := d.GenerateLogFilePath(fileName)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.NewNotFoundError("log file not found", err).WithContext("log_file", path)
		}
		return 0, errors.NewIOError("failed to stat log file", err).WithContext("log_file", path)
	}
	return info.Size(), nil
}

// LogFile is an open analyzer log file.
// The *os.File is handed to the child process directly so no copy goroutine is needed.
type LogFile struct {
	file *os.File
	path string
	size int64
}

func (f *LogFile) File() *os.File {
	return f.file
}

func (f *LogFile) Path() string {
	return f.path
}

// Size is the file size recorded at Close
func (f *LogFile) Size() int64 {
	return f.size
}

func (f *LogFile) Close() error {
	if f.file == nil {
		return nil
	}
	if info, err := f.file.Stat(); err == nil {
		f.size = info.Size()
	}
	err := f.file.Close()
	f.file = nil
	if err != nil {
		return errors.NewIOError("failed to close log file", err).WithContext("log_file", f.path)
	}
	return nil
}
