package log

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Category selects the log stream an entry belongs to.
type Category int

const (
	Application Category = iota
	DiscordEvents
	Store
)

// Logger fans log lines out to stdout/stderr and per-category rotating files.
type Logger struct {
	application *log.Logger
	discord     *log.Logger
	store       *log.Logger
	error       *log.Logger

	files []*lumberjack.Logger
}

var globalLogger *Logger

// SetupLogger initializes the global logger writing rotating files under logDir.
// Safe to call more than once; the last call wins.
func SetupLogger(logDir string) error {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}

	newFile := func(name string) *lumberjack.Logger {
		return &lumberjack.Logger{
			Filename:   filepath.Join(logDir, name),
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
	}

	appLog := newFile("application.log")
	discordLog := newFile("discord_events.log")
	storeLog := newFile("store.log")
	errorLog := newFile("error.log")

	flags := log.LstdFlags | log.Lmicroseconds
	globalLogger = &Logger{
		application: log.New(io.MultiWriter(os.Stdout, appLog), "", flags),
		discord:     log.New(io.MultiWriter(os.Stdout, discordLog), "", flags),
		store:       log.New(io.MultiWriter(os.Stdout, storeLog), "", flags),
		error:       log.New(io.MultiWriter(os.Stderr, errorLog), "", flags),
		files:       []*lumberjack.Logger{appLog, discordLog, storeLog, errorLog},
	}

	return nil
}

// Close closes the rotating file sinks.
func Close() error {
	l := globalLogger
	if l == nil {
		return nil
	}
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// fallback covers log calls made before SetupLogger (mostly tests).
func fallback() *Logger {
	if globalLogger == nil {
		flags := log.LstdFlags | log.Lmicroseconds
		globalLogger = &Logger{
			application: log.New(os.Stderr, "", flags),
			discord:     log.New(os.Stderr, "", flags),
			store:       log.New(os.Stderr, "", flags),
			error:       log.New(os.Stderr, "", flags),
		}
	}
	return globalLogger
}

func (l *Logger) byCategory(category Category) *log.Logger {
	switch category {
	case DiscordEvents:
		return l.discord
	case Store:
		return l.store
	default:
		return l.application
	}
}

func Info(category Category, message string) {
	fallback().byCategory(category).Println(message)
}

func Infof(category Category, format string, v ...any) {
	fallback().byCategory(category).Printf(format, v...)
}

func Error(message string) {
	fallback().error.Println(message)
}

func Errorf(format string, v ...any) {
	fallback().error.Printf(format, v...)
}
