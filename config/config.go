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

// Package config loads the project configuration of bindgen.
package config

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/hyperledger-labs/bindgen/cache"
)

// DefaultFile is the name of the configuration file looked up in the working
// directory.
const DefaultFile = "bindgen.yaml"

// Default values for the optional configuration parameters.
const (
	DefaultOut      = "contracts"
	DefaultPackage  = "contracts"
	DefaultLogLevel = "info"
)

type (
	// Config defines the parameters of a code generation run.
	Config struct {
		Out      string // Output directory, relative to the config file.
		Package  string // Package name of the generated code.
		CacheDir string // Directory of the fetch cache.
		LogLevel string
		LogFile  string

		Plugins []Plugin

		// Dir is the directory of the configuration file. Relative paths in
		// the configuration are resolved against it. It is set by the parser.
		Dir string `yaml:"-" mapstructure:"-"`
	}

	// Plugin selects a plugin by type and holds its type specific settings.
	Plugin struct {
		Type     string
		Name     string // Optional, defaults to the name chosen by the plugin.
		Settings map[string]interface{}
	}
)

// Default returns the configuration with the default values set and no plugins.
func Default() Config {
	return Config{
		Out:      DefaultOut,
		Package:  DefaultPackage,
		LogLevel: DefaultLogLevel,
	}
}

// ParseConfig parses the configuration from a file. If the cache directory is
// not set, it is defaulted to the user cache directory.
func ParseConfig(configFile string) (Config, error) {
	v := NewViper(configFile)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "reading from source")
	}
	return Unmarshal(v, configFile)
}

// NewViper returns a viper instance for reading configFile, with the default
// values set. The config is not read yet.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(filepath.Clean(configFile))
	def := Default()
	v.SetDefault("out", def.Out)
	v.SetDefault("package", def.Package)
	v.SetDefault("loglevel", def.LogLevel)
	return v
}

// Unmarshal decodes the configuration held by v, which was read from
// configFile. It is used by the CLI so that flags bound to v take precedence
// over file values.
func Unmarshal(v *viper.Viper, configFile string) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "unmarshalling")
	}
	abs, err := filepath.Abs(configFile)
	if err != nil {
		return Config{}, errors.WithStack(err)
	}
	cfg.Dir = filepath.Dir(abs)

	if cfg.CacheDir == "" {
		if cfg.CacheDir, err = cache.DefaultDir(); err != nil {
			return Config{}, err
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks that the configuration is complete.
func (cfg Config) Validate() error {
	if cfg.Out == "" {
		return errors.New("out must not be empty")
	}
	for i, p := range cfg.Plugins {
		if p.Type == "" {
			return errors.Errorf("plugins[%d]: type must not be empty", i)
		}
	}
	return nil
}

// CachePath returns the cache directory resolved against the configuration
// directory.
func (cfg Config) CachePath() string {
	return cfg.Path(cfg.CacheDir)
}

// Path resolves a path from the configuration against the configuration
// directory.
func (cfg Config) Path(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(cfg.Dir, path)
}
