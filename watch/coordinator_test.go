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

package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/bindgen"
	"github.com/hyperledger-labs/bindgen/internal/mocks"
	"github.com/hyperledger-labs/bindgen/watch"
)

var token = bindgen.ContractConfig{Name: "Token", ABI: bindgen.ABI(`[{"type":"function","name":"f","inputs":[],"outputs":[]}]`)}

// owned returns the contract as emitted on behalf of plugin.
func owned(c bindgen.ContractConfig, plugin string) bindgen.ContractConfig {
	c.Plugin = plugin
	return c
}

func Test_Coordinator_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("add_upserts", func(t *testing.T) {
		emitter := mocks.NewEmitter(t)
		emitter.On("Upsert", ctx, owned(token, "localfs")).Return(nil).Once()
		spec := &bindgen.WatchSpec{
			OnAdd: func(context.Context, string) (*bindgen.ContractConfig, error) { return &token, nil },
		}
		watch.NewCoordinator(emitter, watch.Options{}).Handle(ctx, "localfs", spec, watch.Event{Kind: watch.Add, Path: "a.json"})
	})

	t.Run("change_uses_change_hook", func(t *testing.T) {
		emitter := mocks.NewEmitter(t)
		emitter.On("Upsert", ctx, owned(token, "localfs")).Return(nil).Once()
		spec := &bindgen.WatchSpec{
			OnAdd: func(context.Context, string) (*bindgen.ContractConfig, error) {
				t.Error("add hook should not be called")
				return nil, nil
			},
			OnChange: func(context.Context, string) (*bindgen.ContractConfig, error) { return &token, nil },
		}
		watch.NewCoordinator(emitter, watch.Options{}).Handle(ctx, "localfs", spec, watch.Event{Kind: watch.Change, Path: "a.json"})
	})

	t.Run("nil_contract_is_skipped", func(t *testing.T) {
		emitter := mocks.NewEmitter(t)
		spec := &bindgen.WatchSpec{
			OnChange: func(context.Context, string) (*bindgen.ContractConfig, error) { return nil, nil },
		}
		watch.NewCoordinator(emitter, watch.Options{}).Handle(ctx, "localfs", spec, watch.Event{Kind: watch.Change, Path: "a.json"})
		emitter.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("hook_error_is_contained", func(t *testing.T) {
		emitter := mocks.NewEmitter(t)
		spec := &bindgen.WatchSpec{
			OnAdd: func(context.Context, string) (*bindgen.ContractConfig, error) { return nil, assert.AnError },
		}
		assert.NotPanics(t, func() {
			watch.NewCoordinator(emitter, watch.Options{}).Handle(ctx, "localfs", spec, watch.Event{Kind: watch.Add, Path: "a.json"})
		})
		emitter.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("unlink_removes", func(t *testing.T) {
		emitter := mocks.NewEmitter(t)
		emitter.On("Remove", ctx, "localfs", "Token").Return(nil).Once()
		spec := &bindgen.WatchSpec{
			OnRemove: func(context.Context, string) (string, bool, error) { return "Token", true, nil },
		}
		watch.NewCoordinator(emitter, watch.Options{}).Handle(ctx, "localfs", spec, watch.Event{Kind: watch.Unlink, Path: "a.json"})
	})

	t.Run("unlink_suppressed", func(t *testing.T) {
		emitter := mocks.NewEmitter(t)
		spec := &bindgen.WatchSpec{
			OnRemove: func(context.Context, string) (string, bool, error) { return "Token", false, nil },
		}
		watch.NewCoordinator(emitter, watch.Options{}).Handle(ctx, "localfs", spec, watch.Event{Kind: watch.Unlink, Path: "a.json"})
		emitter.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("collision_is_contained", func(t *testing.T) {
		emitter := mocks.NewEmitter(t)
		emitter.On("Upsert", ctx, owned(token, "localfs")).
			Return(bindgen.NewNameCollisionError("Token", "etherscan", "localfs")).Once()
		spec := &bindgen.WatchSpec{
			OnAdd: func(context.Context, string) (*bindgen.ContractConfig, error) { return &token, nil },
		}
		assert.NotPanics(t, func() {
			watch.NewCoordinator(emitter, watch.Options{}).Handle(ctx, "localfs", spec, watch.Event{Kind: watch.Add, Path: "a.json"})
		})
		assert.Empty(t, token.Plugin, "hook result must not be modified")
	})

	t.Run("emitter_error_is_contained", func(t *testing.T) {
		emitter := mocks.NewEmitter(t)
		emitter.On("Remove", ctx, "localfs", "Token").Return(assert.AnError).Once()
		spec := &bindgen.WatchSpec{
			OnRemove: func(context.Context, string) (string, bool, error) { return "Token", true, nil },
		}
		assert.NotPanics(t, func() {
			watch.NewCoordinator(emitter, watch.Options{}).Handle(ctx, "localfs", spec, watch.Event{Kind: watch.Unlink, Path: "a.json"})
		})
	})
}

func Test_Coordinator_Start(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Token.json")

	var commandRuns int32
	spec := &bindgen.WatchSpec{
		Command: func(ctx context.Context) error {
			atomic.AddInt32(&commandRuns, 1)
			<-ctx.Done()
			return nil
		},
		Paths: []string{filepath.Join(dir, "*.json")},
		OnAdd: func(_ context.Context, got string) (*bindgen.ContractConfig, error) {
			if got != path {
				return nil, nil
			}
			return &token, nil
		},
		OnRemove: func(context.Context, string) (string, bool, error) { return "Token", true, nil },
	}
	plugin := &mocks.Watcher{}
	plugin.On("Name").Return("test")
	plugin.On("Watch").Return(spec)

	upserted := make(chan bindgen.ContractConfig, 1)
	removed := make(chan string, 1)
	emitter := &mocks.Emitter{}
	emitter.On("Upsert", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		upserted <- args.Get(1).(bindgen.ContractConfig)
	})
	emitter.On("Remove", mock.Anything, "test", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		removed <- args.String(2)
	})

	c := watch.NewCoordinator(emitter, watch.Options{Settle: settle})
	require.NoError(t, c.Start(context.Background(), []bindgen.Watcher{plugin}))

	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o600))
	select {
	case got := <-upserted:
		assert.Equal(t, owned(token, "test"), got)
	case <-time.After(timeout):
		require.FailNow(t, "contract was not upserted")
	}

	require.NoError(t, os.Remove(path))
	select {
	case got := <-removed:
		assert.Equal(t, "Token", got)
	case <-time.After(timeout):
		require.FailNow(t, "contract was not removed")
	}

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	waited := make(chan struct{})
	go func() {
		c.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(timeout):
		require.FailNow(t, "coordinator did not stop")
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&commandRuns))
}

func Test_Coordinator_Start_InvalidPattern(t *testing.T) {
	plugin := &mocks.Watcher{}
	plugin.On("Name").Return("test")
	plugin.On("Watch").Return(&bindgen.WatchSpec{Paths: []string{"/[invalid"}})

	c := watch.NewCoordinator(&mocks.Emitter{}, watch.Options{})
	require.Error(t, c.Start(context.Background(), []bindgen.Watcher{plugin}))
}
