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

// Package plugin holds the configured source plugins of a generation run and
// merges their contracts into one set.
package plugin

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/bindgen"
	"github.com/hyperledger-labs/bindgen/log"
)

// Registry holds plugins in the order of registration. The order is
// significant: plugins are validated and resolved in this order.
type Registry struct {
	log.Logger

	mtx     sync.RWMutex
	plugins []bindgen.Plugin
	names   map[string]struct{}
}

// NewRegistry initializes an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		Logger: log.NewLoggerWithField("component", "registry"),
		names:  make(map[string]struct{}),
	}
}

// Register adds a plugin to the registry.
//
// Returns an error if a plugin with the same name is already registered.
func (r *Registry) Register(p bindgen.Plugin) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, ok := r.names[p.Name()]; ok {
		return errors.Errorf("plugin %s already registered", p.Name())
	}
	r.names[p.Name()] = struct{}{}
	r.plugins = append(r.plugins, p)
	return nil
}

// Plugins returns the registered plugins in order.
func (r *Registry) Plugins() []bindgen.Plugin {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	pluginsCopy := make([]bindgen.Plugin, len(r.plugins))
	copy(pluginsCopy, r.plugins)
	return pluginsCopy
}

// Watchers returns the registered plugins that support watching, in order.
func (r *Registry) Watchers() []bindgen.Watcher {
	var watchers []bindgen.Watcher
	for _, p := range r.Plugins() {
		if w, ok := p.(bindgen.Watcher); ok {
			watchers = append(watchers, w)
		}
	}
	return watchers
}

// Validate validates every plugin in order and stops at the first failure.
func (r *Registry) Validate(ctx context.Context) error {
	for _, p := range r.Plugins() {
		r.WithField("plugin", p.Name()).Debug("Validating")
		if err := p.Validate(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Resolve runs one resolution pass: it gets the contracts of every plugin in
// order and merges them. The pass is aborted on the first failure.
//
// Contracts with an empty ABI are dropped. If two contracts have the same
// name, a NameCollisionError is returned.
func (r *Registry) Resolve(ctx context.Context) ([]bindgen.ContractConfig, error) {
	var contracts []bindgen.ContractConfig
	owners := make(map[string]string)

	for _, p := range r.Plugins() {
		logger := r.WithField("plugin", p.Name())
		logger.Debug("Resolving contracts")
		pluginContracts, err := p.Contracts(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range pluginContracts {
			if c.ABI.IsEmpty() {
				continue
			}
			if owner, ok := owners[c.Name]; ok {
				return nil, bindgen.NewNameCollisionError(c.Name, owner, p.Name())
			}
			owners[c.Name] = p.Name()
			c.Plugin = p.Name()
			contracts = append(contracts, c)
		}
		logger.Infof("Resolved %d contracts", len(pluginContracts))
	}
	return contracts, nil
}

// Run validates all plugins, resolves their contracts and emits them.
func (r *Registry) Run(ctx context.Context, emitter bindgen.Emitter) error {
	if err := r.Validate(ctx); err != nil {
		return err
	}
	contracts, err := r.Resolve(ctx)
	if err != nil {
		return err
	}
	return emitter.Emit(ctx, contracts)
}
