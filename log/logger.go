// Copyright (c) 2024 - for information on the respective copyright owner
// see the NOTICE file and/or the repository at
// https://github.com/hyperledger-labs/bindgen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides the structured logger used by all components of
// bindgen. Entries carrying a "plugin" field are prefixed with the plugin
// name, so that output of several plugins in watch mode can be told apart.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// PluginKey is the field used for the name of the plugin an entry belongs to.
const PluginKey = "plugin"

var (
	logger  *logrus.Logger
	logFile io.Closer
)

// Logger is a type alias of logrus.FieldLogger that defines a broad interface for logging.
type Logger = logrus.FieldLogger

// Fields is a collection of field to be passed to the Logger.
type Fields = logrus.Fields

// InitLogger sets the internal logger instance to the given level and log file.
// This function should be called exactly once and subsequent calls return an error.
// Logs to stderr if logFile is an empty string, so that stdout is left to
// the command output.
func InitLogger(levelStr, logFilePath string) error {
	if logger != nil {
		return errors.New("logger already initialized")
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return errors.WithStack(err)
	}

	var out io.Writer = os.Stderr
	if logFilePath != "" {
		f, err := os.OpenFile(filepath.Clean(logFilePath), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
		if err != nil {
			return errors.WithStack(err)
		}
		out, logFile = f, f
	}
	logger = newLogger(level, out)
	return nil
}

// Close closes the log file, if one was opened by InitLogger, and resets the
// internal logger instance.
func Close() error {
	logger = nil
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return errors.WithStack(err)
}

func newLogger(level logrus.Level, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetOutput(out)
	l.SetFormatter(&pluginFormatter{logrus.TextFormatter{
		FullTimestamp:          true,
		TimestampFormat:        "15:04:05",
		DisableLevelTruncation: true,
	}})
	return l
}

// NewLoggerWithField returns a logger that logs with the given fields.
// It is derived from the internal logger instance of this package and uses the same log level and log file.
//
// If the internal logger instance is not initialized before this call, it is initialized to "debug" level
// and logs to the standard error.
func NewLoggerWithField(key string, value interface{}) Logger {
	if logger == nil {
		logger = newLogger(logrus.DebugLevel, os.Stderr)
	}
	return logger.WithField(key, value)
}

// NewDerivedLoggerWithField returns a logger that inherits all properties of the parent logger,
// and add the given fields for each log entry.
//
// Panics if parent logger is nil.
func NewDerivedLoggerWithField(parentLogger Logger, key string, value interface{}) Logger {
	if parentLogger == nil {
		panic("parent logger should not be nil")
	}
	return parentLogger.WithField(key, value)
}

// pluginFormatter prints the plugin field as a prefix of the message instead
// of as a key value pair.
type pluginFormatter struct {
	logrus.TextFormatter
}

// Format implements logrus.Formatter.
func (f *pluginFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	plugin, ok := entry.Data[PluginKey]
	if !ok {
		return f.TextFormatter.Format(entry)
	}

	data := make(logrus.Fields, len(entry.Data)-1)
	for k, v := range entry.Data {
		if k != PluginKey {
			data[k] = v
		}
	}
	prefixed := *entry
	prefixed.Data = data
	prefixed.Message = fmt.Sprintf("[%v] %s", plugin, entry.Message)
	return f.TextFormatter.Format(&prefixed)
}
