package sprintf

import (
	"fmt"
	"io"
	"log"
	"os"
)

type SprintfLogger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type stdSprintfLogger struct {
	logger *log.Logger
}

// NewStdSprintfLogger writes level-tagged lines to stderr through the std log package
func NewStdSprintfLogger() SprintfLogger {
	return NewSprintfLogger(os.Stderr)
}

func NewSprintfLogger(w io.Writer) SprintfLogger {
	return &stdSprintfLogger{
		logger: log.New(w, "", log.LstdFlags),
	}
}

func (l *stdSprintfLogger) Debugf(format string, args ...interface{}) {
	l.output("DEBUG", format, args...)
}

func (l *stdSprintfLogger) Infof(format string, args ...interface{}) {
	l.output("INFO", format, args...)
}

func (l *stdSprintfLogger) Warnf(format string, args ...interface{}) {
	l.output("WARN", format, args...)
}

func (l *stdSprintfLogger) Errorf(format string, args ...interface{}) {
	l.output("ERROR", format, args...)
}

func (l *stdSprintfLogger) output(level, format string, args ...interface{}) {
	_ = l.logger.Output(3, fmt.Sprintf("[%s] ", level)+fmt.Sprintf(format, args...))
}
