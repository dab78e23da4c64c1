package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
	once sync.Once
)

// Get returns the process-wide logger, creating a JSON logger at info level on first use.
func Get() *logrus.Logger {
	once.Do(func() {
		logg = logrus.New()
		logg.SetFormatter(&logrus.JSONFormatter{})
		logg.SetLevel(logrus.InfoLevel)
		logg.SetOutput(os.Stdout)
	})
	return logg
}

// Configure applies level and format from config. Unknown levels keep info.
func Configure(level, format string) *logrus.Logger {
	l := Get()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
	if format == "text" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
