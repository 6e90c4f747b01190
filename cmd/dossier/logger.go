// Copyright 2025 Kadir Pekel
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

package main

import (
	"fmt"
	"os"

	"github.com/kadirpekel/dossier/pkg/config"
	"github.com/kadirpekel/dossier/pkg/logger"
)

const (
	// LogFileEnvVar is the environment variable name for log file path
	LogFileEnvVar = "LOG_FILE"
	// LogLevelEnvVar is the environment variable name for log level
	LogLevelEnvVar = "LOG_LEVEL"
	// LogFormatEnvVar is the environment variable name for log format
	LogFormatEnvVar = "LOG_FORMAT"
	// DefaultLogFormat is the default log format
	DefaultLogFormat = "simple"
)

// logSettings is the resolved logger configuration. explicit records the
// fields set by flag or environment, which config files cannot override.
type logSettings struct {
	level, file, format string
	explicit            map[string]bool
	closeFile           func()
}

var activeLog = &logSettings{explicit: map[string]bool{}}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// initLoggerFromCLI initializes the logger from CLI flags and environment
// variables. Priority: CLI flags > env vars > defaults.
func initLoggerFromCLI(cliLogLevel, cliLogFile, cliLogFormat string) (func(), error) {
	s := activeLog
	s.level = firstNonEmpty(cliLogLevel, os.Getenv(LogLevelEnvVar))
	s.file = firstNonEmpty(cliLogFile, os.Getenv(LogFileEnvVar))
	s.format = firstNonEmpty(cliLogFormat, os.Getenv(LogFormatEnvVar))
	s.explicit["level"] = s.level != ""
	s.explicit["file"] = s.file != ""
	s.explicit["format"] = s.format != ""

	if err := s.apply(); err != nil {
		return func() {}, err
	}
	return s.close, nil
}

// applyLoggerConfig re-initializes the logger from the config file for the
// fields not set by flag or environment.
func applyLoggerConfig(cfg config.LoggerConfig) error {
	s := activeLog
	changed := false
	if !s.explicit["level"] && cfg.Level != "" && cfg.Level != s.level {
		s.level, changed = cfg.Level, true
	}
	if !s.explicit["file"] && cfg.File != s.file {
		s.file, changed = cfg.File, true
	}
	if !s.explicit["format"] && cfg.Format != "" && cfg.Format != s.format {
		s.format, changed = cfg.Format, true
	}
	if !changed {
		return nil
	}
	return s.apply()
}

func (s *logSettings) apply() error {
	level, err := logger.ParseLevel(firstNonEmpty(s.level, "info"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	closeFile := func() {}
	if s.file != "" {
		file, cleanup, err := logger.OpenLogFile(s.file)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		output, closeFile = file, cleanup
	}

	logger.Init(level, output, firstNonEmpty(s.format, DefaultLogFormat))
	s.close()
	s.closeFile = closeFile
	return nil
}

func (s *logSettings) close() {
	if s.closeFile != nil {
		s.closeFile()
		s.closeFile = nil
	}
}
