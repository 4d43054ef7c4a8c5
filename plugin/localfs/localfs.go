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

// Package localfs implements a plugin that reads contract ABIs from JSON files
// on disk. A file holds either a raw ABI array or a build artifact object
// with an "abi" field.
package localfs

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/bindgen"
	"github.com/hyperledger-labs/bindgen/log"
)

// DefaultName is the default name of the plugin.
const DefaultName = "localfs"

type (
	// Contract maps a contract name to the file holding its ABI.
	Contract struct {
		Name    string
		Path    string // Relative to Config.Dir, unless absolute.
		Address bindgen.Address
	}

	// Config defines the parameters required to configure a localfs plugin.
	Config struct {
		Name      string // Defaults to DefaultName.
		Dir       string
		Contracts []Contract
		Logger    log.Logger
	}

	// Plugin reads contract ABIs from files.
	Plugin struct {
		log.Logger
		cfg Config
	}
)

// New returns a localfs plugin for the given configuration.
func New(cfg Config) *Plugin {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewLoggerWithField("plugin", cfg.Name)
	}
	return &Plugin{Logger: cfg.Logger, cfg: cfg}
}

// Name returns the name of the plugin.
func (p *Plugin) Name() string {
	return p.cfg.Name
}

// Validate checks that the file of each contract exists.
func (p *Plugin) Validate(_ context.Context) error {
	for _, c := range p.cfg.Contracts {
		path := p.path(c)
		info, err := os.Stat(path)
		if err != nil {
			return bindgen.NewPrerequisiteError(p.cfg.Name, "abi file for contract "+c.Name, "", err)
		}
		if info.IsDir() {
			return bindgen.NewPrerequisiteError(p.cfg.Name, "abi file for contract "+c.Name,
				"", errors.Errorf("%s is a directory", path))
		}
	}
	return nil
}

// Contracts reads the ABI of every configured contract. Contracts with an
// empty ABI are dropped.
func (p *Plugin) Contracts(_ context.Context) ([]bindgen.ContractConfig, error) {
	contracts := make([]bindgen.ContractConfig, 0, len(p.cfg.Contracts))
	for _, c := range p.cfg.Contracts {
		contract, err := p.read(c)
		if err != nil {
			return nil, bindgen.NewResolutionError(p.cfg.Name, c.Name, err)
		}
		if contract.ABI.IsEmpty() {
			p.WithField("contract", c.Name).Debug("Dropping contract with empty abi")
			continue
		}
		contracts = append(contracts, contract)
	}
	return contracts, nil
}

// Watch observes the configured files. Changes re-read the affected contract,
// a removed file removes its contract.
func (p *Plugin) Watch() *bindgen.WatchSpec {
	paths := make([]string, len(p.cfg.Contracts))
	for i, c := range p.cfg.Contracts {
		paths[i] = filepath.ToSlash(p.path(c))
	}
	return &bindgen.WatchSpec{
		Paths:    paths,
		OnAdd:    p.onUpdate,
		OnChange: p.onUpdate,
		OnRemove: p.onRemove,
	}
}

func (p *Plugin) onUpdate(_ context.Context, path string) (*bindgen.ContractConfig, error) {
	c, ok := p.contractAt(path)
	if !ok {
		return nil, nil
	}
	contract, err := p.read(c)
	if err != nil {
		return nil, bindgen.NewResolutionError(p.cfg.Name, c.Name, err)
	}
	if contract.ABI.IsEmpty() {
		return nil, nil
	}
	return &contract, nil
}

func (p *Plugin) onRemove(_ context.Context, path string) (string, bool, error) {
	c, ok := p.contractAt(path)
	if !ok {
		return "", false, nil
	}
	return c.Name, true, nil
}

func (p *Plugin) contractAt(path string) (Contract, bool) {
	for _, c := range p.cfg.Contracts {
		if filepath.Clean(p.path(c)) == filepath.Clean(path) {
			return c, true
		}
	}
	return Contract{}, false
}

func (p *Plugin) path(c Contract) string {
	if filepath.IsAbs(c.Path) {
		return c.Path
	}
	return filepath.Join(p.cfg.Dir, c.Path)
}

func (p *Plugin) read(c Contract) (bindgen.ContractConfig, error) {
	data, err := os.ReadFile(p.path(c))
	if err != nil {
		return bindgen.ContractConfig{}, errors.WithStack(err)
	}
	abi, err := ParseFile(data)
	if err != nil {
		return bindgen.ContractConfig{}, errors.WithMessage(err, p.path(c))
	}
	return bindgen.ContractConfig{Address: c.Address, Name: c.Name, ABI: abi}, nil
}

// ParseFile extracts the ABI from the contents of a file, which is either a
// raw ABI array or an object with an "abi" field.
func ParseFile(data []byte) (bindgen.ABI, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var artifact struct {
			ABI bindgen.ABI `json:"abi"`
		}
		if err := json.Unmarshal(trimmed, &artifact); err != nil {
			return nil, errors.Wrap(err, "decoding artifact")
		}
		if artifact.ABI == nil {
			return nil, errors.New("artifact has no abi field")
		}
		trimmed = artifact.ABI
	}
	abi := bindgen.ABI(trimmed)
	if abi.IsEmpty() {
		return abi, nil
	}
	if _, err := abi.Parse(); err != nil {
		return nil, err
	}
	return abi, nil
}
