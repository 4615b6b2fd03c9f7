package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05.000"

type Logger struct {
	// The level at which this logger logs. Messages intended for a higher
	// (more verbose) level are ignored.
	Level

	// Tag used to filter and classify log messages.
	Tag string

	out io.Writer

	// Mutex to prevent messages from different goroutines from interleaving.
	// Shared by all derived loggers.
	mu *sync.Mutex
}

// Write to stderr by default.
var DefaultLogger = &Logger{defaultLevel, "", os.Stderr, new(sync.Mutex)}

// Override the destination for this logger.
func (log *Logger) SetDestination(out io.Writer) {
	log.out = out
}

// Derive a new logger with the given tag. Look up the level based on the tag.
func (log *Logger) WithTag(tag string) *Logger {
	return &Logger{determineLevel(tag, log.Level), tag, log.out, log.mu}
}

// Derive a new logger with the given default level. Environment overrides
// still apply.
func (log *Logger) WithDefaultLevel(level Level) *Logger {
	return &Logger{determineLevel(log.Tag, level), log.Tag, log.out, log.mu}
}

// Log a message at the given level.
func (log *Logger) Log(level Level, format string, a ...interface{}) {
	if level > log.Level {
		// Message is too verbose for this logger.
		return
	}

	line := time.Now().Format(timestampFormat)
	line += " [" + level.String() + "]"
	if log.Tag != "" {
		line += " " + log.Tag + ":"
	}
	line += " " + fmt.Sprintf(format, a...)
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line += "\n"
	}

	log.mu.Lock()
	io.WriteString(log.out, line)
	log.mu.Unlock()
}

func (log *Logger) Errorf(format string, a ...interface{}) {
	log.Log(Error, format, a...)
}

func (log *Logger) Warnf(format string, a ...interface{}) {
	log.Log(Warn, format, a...)
}

func (log *Logger) Infof(format string, a ...interface{}) {
	log.Log(Info, format, a...)
}

func (log *Logger) Debugf(format string, a ...interface{}) {
	log.Log(Debug, format, a...)
}
