// Package logging sets up the structured logger shared by every
// component. The teacher repo logs with stdlib log.Printf; the rest of
// the retrieval pack (h3-spatial-cache, skyeye, flyingBeeper) reaches for
// a structured logger instead, so that is what this service carries.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds a logger that writes structured JSON to a rotating file at
// path (empty disables the file sink) and a human-readable console writer
// to stderr.
func New(path string) zerolog.Logger {
	var writers []io.Writer
	writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	if path != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}
	mw := zerolog.MultiLevelWriter(writers...)
	return zerolog.New(mw).With().Timestamp().Caller().Logger()
}
