package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Leveled logger shared by the compliance service and the reclaimer.
// - Debug/Info/Warn/Error/Fatal printf variants
// - *w variants append key=value pairs: logger.Infow("submitted", "driver", id)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	mu     sync.RWMutex
	logger *log.Logger = log.New(os.Stdout, "", 0)
	level  Level       = LevelInfo
)

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup. Default level is Info.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	level = ParseLevel(l)
}

// ParseLevel maps a level name to a Level; unknown names map to LevelInfo.
func ParseLevel(l string) Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	}
	return LevelInfo
}

// SetOutput redirects log output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "", 0)
}

func header(lvl string) string {
	return fmt.Sprintf("%s [%s] ", time.Now().Format(time.RFC3339), strings.ToUpper(lvl))
}

func shouldLog(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

func output() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func logf(l Level, name, format string, v ...interface{}) {
	if !shouldLog(l) {
		return
	}
	output().Printf(header(name)+format, v...)
}

func Debugf(format string, v ...interface{}) { logf(LevelDebug, "debug", format, v...) }
func Infof(format string, v ...interface{})  { logf(LevelInfo, "info", format, v...) }
func Warnf(format string, v ...interface{})  { logf(LevelWarn, "warn", format, v...) }
func Errorf(format string, v ...interface{}) { logf(LevelError, "error", format, v...) }

func Fatalf(format string, v ...interface{}) {
	output().Printf(header("fatal")+format, v...)
	os.Exit(1)
}

// fields renders key/value pairs; an odd trailing key gets the value "?".
func fields(kv []interface{}) string {
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		b.WriteByte(' ')
		fmt.Fprint(&b, kv[i])
		b.WriteByte('=')
		if i+1 < len(kv) {
			val := fmt.Sprint(kv[i+1])
			if strings.ContainsAny(val, " \t\"") {
				val = fmt.Sprintf("%q", val)
			}
			b.WriteString(val)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}

func Debugw(msg string, kv ...interface{}) { logf(LevelDebug, "debug", "%s%s", msg, fields(kv)) }
func Infow(msg string, kv ...interface{})  { logf(LevelInfo, "info", "%s%s", msg, fields(kv)) }
func Warnw(msg string, kv ...interface{})  { logf(LevelWarn, "warn", "%s%s", msg, fields(kv)) }
func Errorw(msg string, kv ...interface{}) { logf(LevelError, "error", "%s%s", msg, fields(kv)) }

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	switch level {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}
