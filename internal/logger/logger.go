package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"emotion-cam-go/config"

	log "github.com/sirupsen/logrus"
)

// Init konfiguriert den globalen logrus-Logger. Der zurückgegebene Closer
// schließt die Logdatei, falls eine geöffnet wurde.
func Init(cfg config.LogConfig) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info': %v", cfg.Level, err)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(Formatter(cfg.Format))

	file := openLogFile(cfg.File)
	if file == nil {
		log.SetOutput(os.Stdout)
		log.WithField("level", level).Info("Logger initialized")
		return nopCloser{}, nil
	}

	// stdout bleibt immer aktiv, die Datei kommt hinzu
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	log.WithFields(log.Fields{"level": level, "file": cfg.File}).Info("Logger initialized")
	return file, nil
}

// Formatter liefert den logrus-Formatter für "text" oder "json"
func Formatter(format string) log.Formatter {
	if strings.EqualFold(format, "json") {
		return &log.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"}
	}
	return &log.TextFormatter{FullTimestamp: true}
}

// openLogFile liefert nil, wenn keine Datei konfiguriert ist oder sie nicht
// geöffnet werden kann. Fehler werden nur protokolliert.
func openLogFile(path string) *os.File {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		log.Errorf("Failed to create log directory '%s': %v", dir, err)
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0660)
	if err != nil {
		log.Errorf("Failed to open log file '%s': %v", path, err)
		return nil
	}
	return file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
