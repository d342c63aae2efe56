package helpers

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// LoggerInterface defines the interface for run-log implementations
type LoggerInterface interface {
	LogError(section string, err error)
	LogInfo(format string, args ...interface{})
}

// RunLogger appends per-run pass/fail lines to a timestamped log file, one
// file per day, so degraded extractions can be repaired manually later.
type RunLogger struct {
	logFile string
}

// NewRunLogger creates a run logger writing under dir.
func NewRunLogger(dir string) (*RunLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	name := fmt.Sprintf("log_%s.log", time.Now().Format("2006-01-02"))
	return &RunLogger{logFile: filepath.Join(dir, name)}, nil
}

// LogError logs an error to the run log file with section and timestamp
func (l *RunLogger) LogError(section string, err error) {
	l.append(fmt.Sprintf("[%s] %s: FAIL", section, err.Error()))
}

// LogInfo logs an informational line to the run log file
func (l *RunLogger) LogInfo(format string, args ...interface{}) {
	l.append(fmt.Sprintf(format, args...))
}

func (l *RunLogger) append(line string) {
	f, err := os.OpenFile(l.logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open run log: %v\n", err)
		return
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	f.WriteString(fmt.Sprintf("[%s] %s\n", timestamp, line))
}
