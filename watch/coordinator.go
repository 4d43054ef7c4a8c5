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

package watch

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/bindgen"
	"github.com/hyperledger-labs/bindgen/log"
)

// Coordinator runs the watch hooks of a set of plugins and forwards their
// results to an emitter as partial updates.
//
// Events of one plugin are handled in order, one at a time. Plugins are
// handled independently of each other. Errors from hooks or the emitter are
// logged and do not stop the coordinator.
type Coordinator struct {
	log.Logger

	emitter bindgen.Emitter
	opts    Options

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mtx      sync.Mutex
	watchers []*Watcher
}

// NewCoordinator returns a coordinator that forwards updates to the emitter.
// The options are used for the watcher of each plugin.
func NewCoordinator(emitter bindgen.Emitter, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLoggerWithField("component", "watch")
	}
	return &Coordinator{
		Logger:  logger,
		emitter: emitter,
		opts:    opts,
	}
}

// Start begins watching for every plugin that declares watch paths, and runs
// the watch command of every plugin that declares one. If any watcher cannot
// be started, the ones started so far are closed.
func (c *Coordinator) Start(ctx context.Context, plugins []bindgen.Watcher) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	for _, p := range plugins {
		spec := p.Watch()
		if spec == nil {
			continue
		}
		name := p.Name()
		logger := c.WithField(log.PluginKey, name)

		if len(spec.Paths) > 0 {
			opts := c.opts
			opts.Logger = logger
			w, err := New(spec.Paths, opts)
			if err != nil {
				c.Close() // nolint: errcheck
				return errors.WithMessagef(err, "watching %s", name)
			}
			c.mtx.Lock()
			c.watchers = append(c.watchers, w)
			c.mtx.Unlock()

			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				for ev := range w.Events() {
					c.Handle(ctx, name, spec, ev)
				}
			}()
			logger.Infof("Watching %v", spec.Paths)
		}

		if spec.Command != nil {
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				if err := spec.Command(ctx); err != nil && ctx.Err() == nil {
					logger.Errorf("Watch command: %v", err)
				}
			}()
		}
	}
	return nil
}

// Handle invokes the hook of spec for the event and forwards the result to
// the emitter on behalf of the named plugin. A contract emitted for another
// plugin is neither replaced nor removed; the collision is logged.
func (c *Coordinator) Handle(ctx context.Context, plugin string, spec *bindgen.WatchSpec, ev Event) {
	logger := c.WithFields(log.Fields{log.PluginKey: plugin, "event": ev.Kind, "path": ev.Path})

	switch ev.Kind {
	case Add, Change:
		hook := spec.OnChange
		if ev.Kind == Add {
			hook = spec.OnAdd
		}
		if hook == nil {
			return
		}
		contract, err := hook(ctx, ev.Path)
		if err != nil {
			logger.Errorf("Resolving contract: %v", err)
			return
		}
		if contract == nil {
			logger.Debug("No contract for path")
			return
		}
		updated := *contract
		updated.Plugin = plugin
		if err := c.emitter.Upsert(ctx, updated); err != nil {
			logEmitError(logger, "Emitting contract "+updated.Name, err)
			return
		}
		logger.Infof("Updated contract %s", updated.Name)

	case Unlink:
		if spec.OnRemove == nil {
			return
		}
		name, ok, err := spec.OnRemove(ctx, ev.Path)
		if err != nil {
			logger.Errorf("Resolving removed contract: %v", err)
			return
		}
		if !ok {
			logger.Debug("Contract is still defined, not removing")
			return
		}
		if err := c.emitter.Remove(ctx, plugin, name); err != nil {
			logEmitError(logger, "Removing contract "+name, err)
			return
		}
		logger.Infof("Removed contract %s", name)
	}
}

func logEmitError(logger log.Logger, action string, err error) {
	var collision bindgen.NameCollisionError
	if errors.As(err, &collision) {
		logger.Warnf("%s skipped: %v", action, err)
		return
	}
	logger.Errorf("%s: %v", action, err)
}

// Wait blocks until all watchers are closed and all watch commands returned.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close stops all watch commands and closes all watchers. It is safe to call
// Close more than once.
func (c *Coordinator) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.mtx.Lock()
	defer c.mtx.Unlock()

	var firstErr error
	for _, w := range c.watchers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
