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

package plugin

import (
	"io"
	"path/filepath"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/bindgen"
	"github.com/hyperledger-labs/bindgen/cache"
	"github.com/hyperledger-labs/bindgen/config"
	"github.com/hyperledger-labs/bindgen/log"
	"github.com/hyperledger-labs/bindgen/plugin/etherscan"
	"github.com/hyperledger-labs/bindgen/plugin/fetch"
	"github.com/hyperledger-labs/bindgen/plugin/hardhat"
	"github.com/hyperledger-labs/bindgen/plugin/localfs"
	"github.com/hyperledger-labs/bindgen/shell"
)

// Plugin types that can be used in the configuration.
const (
	TypeFetch     = "fetch"
	TypeEtherscan = "etherscan"
	TypeLocalFS   = "localfs"
	TypeHardhat   = "hardhat"
)

type (
	// Deps are the resources shared by the plugins of a run.
	Deps struct {
		Cache  *cache.Cache
		Dir    string    // Relative paths in plugin settings are resolved against it.
		Stdout io.Writer // Receives the output of watch mode rebuilds.
	}

	contractSettings struct {
		Name    string
		Address bindgen.Address
	}

	fetchSettings struct {
		URL         string
		Headers     map[string]string
		Contracts   []contractSettings
		Timeout     time.Duration
		Concurrency int
	}

	etherscanSettings struct {
		APIKey    string
		ChainID   uint64
		BaseURL   string
		Contracts []contractSettings
	}

	localfsSettings struct {
		Contracts []struct {
			Name    string
			Path    string
			Address bindgen.Address
		}
	}

	hardhatSettings struct {
		Project     string
		Artifacts   string
		Sources     string
		Include     []string
		Exclude     []string
		NamePrefix  string
		Deployments []struct {
			Contract string
			Address  bindgen.Address
		}
		Commands struct {
			Clean   *string
			Build   *string
			Rebuild *string
		}
		Tool string
	}
)

// New builds the plugin selected by the type in cfg from its settings.
func New(cfg config.Plugin, deps Deps) (bindgen.Plugin, error) {
	name := cfg.Name
	if name == "" {
		name = cfg.Type
	}
	logger := log.NewLoggerWithField("plugin", name)

	switch cfg.Type {
	case TypeFetch:
		var s fetchSettings
		if err := decode(cfg.Settings, &s); err != nil {
			return nil, errors.WithMessage(err, name)
		}
		if s.URL == "" {
			return nil, errors.Errorf("%s: url is required", name)
		}
		contracts := make([]fetch.Contract, len(s.Contracts))
		for i, c := range s.Contracts {
			contracts[i] = fetch.Contract(c)
		}
		p, err := fetch.New(fetch.Config{
			Name:        name,
			Contracts:   contracts,
			Request:     fetch.URLRequest(s.URL, s.Headers),
			Cache:       deps.Cache,
			Timeout:     s.Timeout,
			Concurrency: s.Concurrency,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	case TypeEtherscan:
		var s etherscanSettings
		if err := decode(cfg.Settings, &s); err != nil {
			return nil, errors.WithMessage(err, name)
		}
		contracts := make([]etherscan.Contract, len(s.Contracts))
		for i, c := range s.Contracts {
			contracts[i] = etherscan.Contract(c)
		}
		p, err := etherscan.New(etherscan.Config{
			Name:      name,
			APIKey:    s.APIKey,
			ChainID:   s.ChainID,
			BaseURL:   s.BaseURL,
			Contracts: contracts,
			Cache:     deps.Cache,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	case TypeLocalFS:
		var s localfsSettings
		if err := decode(cfg.Settings, &s); err != nil {
			return nil, errors.WithMessage(err, name)
		}
		contracts := make([]localfs.Contract, len(s.Contracts))
		for i, c := range s.Contracts {
			contracts[i] = localfs.Contract(c)
		}
		return localfs.New(localfs.Config{
			Name:      name,
			Dir:       deps.Dir,
			Contracts: contracts,
			Logger:    logger,
		}), nil

	case TypeHardhat:
		var s hardhatSettings
		if err := decode(cfg.Settings, &s); err != nil {
			return nil, errors.WithMessage(err, name)
		}
		deployments := make(map[string]bindgen.Address, len(s.Deployments))
		for _, d := range s.Deployments {
			deployments[d.Contract] = d.Address
		}
		p, err := hardhat.New(hardhat.Config{
			Name:        name,
			Project:     resolvePath(deps.Dir, s.Project),
			Artifacts:   s.Artifacts,
			Sources:     s.Sources,
			Include:     s.Include,
			Exclude:     s.Exclude,
			NamePrefix:  s.NamePrefix,
			Deployments: deployments,
			Commands: hardhat.Commands{
				Clean:   toCommand(s.Commands.Clean),
				Build:   toCommand(s.Commands.Build),
				Rebuild: toCommand(s.Commands.Rebuild),
			},
			Tool:   shell.Command(s.Tool),
			Stdout: deps.Stdout,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, errors.Errorf("%s: unknown plugin type %q", name, cfg.Type)
	}
}

// NewRegistryFromConfig builds every plugin in the configuration and
// registers it in order.
func NewRegistryFromConfig(cfgs []config.Plugin, deps Deps) (*Registry, error) {
	r := NewRegistry()
	for _, cfg := range cfgs {
		p, err := New(cfg, deps)
		if err != nil {
			return nil, err
		}
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// decode decodes plugin settings into out. Unknown keys are an error. Keys
// are matched case insensitively.
func decode(settings map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			addressHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.Wrap(decoder.Decode(settings), "decoding settings")
}

var addressType = reflect.TypeOf(bindgen.Address{})

func addressHook(_, to reflect.Type, data interface{}) (interface{}, error) {
	if to != addressType {
		return data, nil
	}
	return bindgen.ParseAddress(data)
}

func toCommand(s *string) *shell.Command {
	if s == nil {
		return nil
	}
	c := shell.Command(*s)
	return &c
}

func resolvePath(dir, path string) string {
	if path == "" || dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
