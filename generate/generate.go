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

// Package generate writes Go bindings for resolved contracts.
//
// The bindings of all contracts are generated together into one file, so that
// struct types shared by several contracts are declared once. A manifest
// (contracts.json) records the address and ABI of every contract; partial
// updates in watch mode regenerate the bindings from it.
package generate

import (
	"context"
	"encoding/json"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/abigen"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/bindgen"
	"github.com/hyperledger-labs/bindgen/log"
)

// ManifestFile is the name of the manifest in the output directory.
const ManifestFile = "contracts.json"

// BindingsFile is the name of the generated Go file in the output directory.
const BindingsFile = "bindings.go"

// DefaultPackage is the default package name of the generated code.
const DefaultPackage = "contracts"

type (
	// Config defines the parameters required to configure a generator.
	Config struct {
		Out     string // Output directory.
		Package string // Defaults to DefaultPackage.
		Logger  log.Logger
	}

	// Entry describes one generated contract in the manifest.
	Entry struct {
		Plugin  string          `json:"plugin,omitempty"` // Plugin that resolved the contract, if known.
		Address bindgen.Address `json:"address"`
		ABI     bindgen.ABI     `json:"abi"`
	}

	// Manifest maps contract names to their entries.
	Manifest map[string]Entry

	// Generator is a bindgen.Emitter that writes Go bindings generated by
	// abigen. It is safe for concurrent use.
	Generator struct {
		log.Logger
		out string
		pkg string
		mtx sync.Mutex
	}
)

// New returns a generator for the given configuration.
func New(cfg Config) (*Generator, error) {
	if cfg.Out == "" {
		return nil, errors.New("output directory is required")
	}
	if cfg.Package == "" {
		cfg.Package = DefaultPackage
	}
	if !token.IsIdentifier(cfg.Package) {
		return nil, errors.Errorf("invalid package name %q", cfg.Package)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewLoggerWithField("component", "generate")
	}
	return &Generator{
		Logger: cfg.Logger,
		out:    cfg.Out,
		pkg:    cfg.Package,
	}, nil
}

// Emit replaces the bindings and the manifest with the given contracts.
func (g *Generator) Emit(_ context.Context, contracts []bindgen.ContractConfig) error {
	manifest := make(Manifest, len(contracts))
	for _, c := range contracts {
		manifest[c.Name] = entryOf(c)
	}

	g.mtx.Lock()
	defer g.mtx.Unlock()
	if err := g.write(manifest); err != nil {
		return err
	}
	g.Infof("Generated bindings for %d contracts in %s", len(contracts), g.out)
	return nil
}

// Upsert adds or replaces one contract and regenerates the bindings. The
// other contracts are taken from the manifest. A contract recorded for
// another plugin is not replaced and a NameCollisionError is returned.
func (g *Generator) Upsert(_ context.Context, contract bindgen.ContractConfig) error {
	g.mtx.Lock()
	defer g.mtx.Unlock()

	manifest, err := g.readManifest()
	if err != nil {
		return err
	}
	if err := manifest.checkOwner(contract.Name, contract.Plugin); err != nil {
		return err
	}
	manifest[contract.Name] = entryOf(contract)
	return g.write(manifest)
}

// Remove removes one contract and regenerates the bindings. Removing a
// contract that was not emitted is not an error. A contract recorded for
// another plugin is not removed and a NameCollisionError is returned.
func (g *Generator) Remove(_ context.Context, plugin, name string) error {
	g.mtx.Lock()
	defer g.mtx.Unlock()

	manifest, err := g.readManifest()
	if err != nil {
		return err
	}
	if _, ok := manifest[name]; !ok {
		return nil
	}
	if err := manifest.checkOwner(name, plugin); err != nil {
		return err
	}
	delete(manifest, name)
	return g.write(manifest)
}

// ReadManifest reads the manifest in the output directory. A missing
// manifest is returned as an empty one.
func (g *Generator) ReadManifest() (Manifest, error) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	return g.readManifest()
}

// write generates the bindings of all contracts in the manifest, then writes
// the bindings and the manifest. Nothing is written if generation fails.
func (g *Generator) write(manifest Manifest) error {
	var src string
	if len(manifest) > 0 {
		var err error
		if src, err = Bind(g.pkg, manifest.Contracts()); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(g.out, 0o750); err != nil {
		return errors.WithStack(err)
	}

	bindings := filepath.Join(g.out, BindingsFile)
	if src == "" {
		if err := removeFile(bindings); err != nil {
			return err
		}
	} else if err := writeFile(bindings, []byte(src)); err != nil {
		return err
	}
	return g.writeManifest(manifest)
}

func (g *Generator) readManifest() (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(g.out, ManifestFile))
	if os.IsNotExist(err) {
		return Manifest{}, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	manifest := Manifest{}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrap(err, "decoding manifest")
	}
	return manifest, nil
}

func (g *Generator) writeManifest(manifest Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	return writeFile(filepath.Join(g.out, ManifestFile), append(data, '\n'))
}

// Names returns the contract names in the manifest in sorted order.
func (m Manifest) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Contracts returns the contracts in the manifest, sorted by name.
func (m Manifest) Contracts() []bindgen.ContractConfig {
	contracts := make([]bindgen.ContractConfig, 0, len(m))
	for _, name := range m.Names() {
		contracts = append(contracts, bindgen.ContractConfig{
			Name:    name,
			Address: m[name].Address,
			ABI:     m[name].ABI,
		})
	}
	return contracts
}

// Owner returns the plugin that resolved the contract, if it is recorded.
func (m Manifest) Owner(name string) (string, bool) {
	entry, ok := m[name]
	if !ok || entry.Plugin == "" {
		return "", false
	}
	return entry.Plugin, true
}

// checkOwner returns a NameCollisionError if the contract is recorded for a
// plugin other than the given one. Unknown owners match any plugin.
func (m Manifest) checkOwner(name, plugin string) error {
	owner, ok := m.Owner(name)
	if !ok || plugin == "" || owner == plugin {
		return nil
	}
	return bindgen.NewNameCollisionError(name, owner, plugin)
}

func entryOf(c bindgen.ContractConfig) Entry {
	return Entry{Plugin: c.Plugin, Address: c.Address, ABI: c.ABI}
}

// Bind generates the Go source of the bindings of all contracts in a single
// abigen pass. Struct types used by several contracts are declared once.
func Bind(pkg string, contracts []bindgen.ContractConfig) (string, error) {
	types := make([]string, len(contracts))
	abis := make([]string, len(contracts))
	bytecodes := make([]string, len(contracts))
	for i, c := range contracts {
		if !token.IsIdentifier(c.Name) {
			return "", errors.Errorf("contract name %q is not a valid Go identifier", c.Name)
		}
		types[i] = c.Name
		abis[i] = string(c.ABI)
	}
	src, err := abigen.Bind(types, abis, bytecodes, nil, pkg, nil, nil)
	if err != nil {
		return "", errors.Wrap(err, "generating bindings")
	}
	return src, nil
}

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.WithStack(err)
	}
	defer os.Remove(tmp.Name()) // nolint: errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() // nolint: errcheck
		return errors.WithStack(err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WithStack(err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil { // nolint: gosec	// generated sources are not secret.
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Rename(tmp.Name(), path))
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}
