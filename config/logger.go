package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds a logrus logger writing to stdout. Unknown levels fall
// back to info.
func NewLogger(level, format string) *logrus.Logger {
	logg := logrus.New()
	logg.SetOutput(os.Stdout)

	if format == "text" {
		logg.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logg.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logg.SetLevel(lvl)
	return logg
}

// LogError records err with the module, function and context it came from.
func LogError(logger *logrus.Logger, moduleName, funcName, context string, data any, err error) {
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
