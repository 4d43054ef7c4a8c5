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

package hardhat_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/otiai10/copy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/bindgen"
	"github.com/hyperledger-labs/bindgen/plugin/hardhat"
	"github.com/hyperledger-labs/bindgen/shell"
)

var counterAddr = bindgen.NewAddress(common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"))

// newProject copies the fixture project into a temporary directory.
func newProject(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "project")
	require.NoError(t, copy.Copy("testdata/project", dir))
	return dir
}

func command(s string) *shell.Command {
	c := shell.Command(s)
	return &c
}

// noop returns commands that succeed without doing anything.
func noop() hardhat.Commands {
	return hardhat.Commands{Clean: command("true"), Build: command("true"), Rebuild: command("true")}
}

func newPlugin(t *testing.T, cfg hardhat.Config) *hardhat.Plugin {
	t.Helper()
	p, err := hardhat.New(cfg)
	require.NoError(t, err)
	return p
}

func names(contracts []bindgen.ContractConfig) []string {
	got := make([]string, len(contracts))
	for i, c := range contracts {
		got[i] = c.Name
	}
	return got
}

func Test_New(t *testing.T) {
	t.Run("err_missing_project", func(t *testing.T) {
		_, err := hardhat.New(hardhat.Config{})
		require.Error(t, err)
	})
	t.Run("err_invalid_pattern", func(t *testing.T) {
		_, err := hardhat.New(hardhat.Config{Project: newProject(t), Include: []string{"[*.json"}})
		require.Error(t, err)
	})
}

func Test_Plugin_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("err_project_not_found", func(t *testing.T) {
		p := newPlugin(t, hardhat.Config{Project: filepath.Join(t.TempDir(), "missing"), Commands: noop()})
		err := p.Validate(ctx)
		require.Error(t, err)
		prerequisiteErr := bindgen.PrerequisiteError{}
		require.True(t, errors.As(err, &prerequisiteErr))
		assert.Contains(t, err.Error(), "Hardhat project not found")
	})

	t.Run("happy_no_probe_with_all_commands", func(t *testing.T) {
		p := newPlugin(t, hardhat.Config{
			Project:  newProject(t),
			Tool:     "bindgen-test-no-such-tool",
			Commands: noop(),
		})
		require.NoError(t, p.Validate(ctx))
	})

	t.Run("happy_probe", func(t *testing.T) {
		p := newPlugin(t, hardhat.Config{Project: newProject(t), Tool: "true"})
		require.NoError(t, p.Validate(ctx))
	})

	t.Run("err_probe_fails", func(t *testing.T) {
		project := newProject(t)
		require.NoError(t, os.WriteFile(filepath.Join(project, "pnpm-lock.yaml"), nil, 0o600))
		p := newPlugin(t, hardhat.Config{
			Project:  project,
			Tool:     "bindgen-test-no-such-tool",
			Commands: hardhat.Commands{Clean: command("true"), Build: command("true")},
		})

		err := p.Validate(ctx)
		require.Error(t, err)
		prerequisiteErr := bindgen.PrerequisiteError{}
		require.True(t, errors.As(err, &prerequisiteErr))
		assert.Equal(t, "Install it with: pnpm add -D hardhat", prerequisiteErr.Remedy)
	})
}

func Test_Plugin_Contracts(t *testing.T) {
	ctx := context.Background()

	t.Run("happy", func(t *testing.T) {
		p := newPlugin(t, hardhat.Config{
			Project:     newProject(t),
			Commands:    noop(),
			Deployments: map[string]bindgen.Address{"Counter": counterAddr},
		})
		contracts, err := p.Contracts(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Counter", "Token"}, names(contracts), "empty abi and excluded files should be dropped")
		assert.Equal(t, counterAddr, contracts[0].Address)
		assert.True(t, contracts[1].Address.IsZero())

		parsed, err := contracts[1].ABI.Parse()
		require.NoError(t, err)
		assert.Contains(t, parsed.Events, "Transfer")
	})

	t.Run("happy_name_prefix", func(t *testing.T) {
		p := newPlugin(t, hardhat.Config{Project: newProject(t), Commands: noop(), NamePrefix: "Local"})
		contracts, err := p.Contracts(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"LocalCounter", "LocalToken"}, names(contracts))
	})

	t.Run("happy_runs_clean_then_build", func(t *testing.T) {
		project := newProject(t)
		cleaned := filepath.Join(project, "cleaned")
		built := filepath.Join(project, "built")
		p := newPlugin(t, hardhat.Config{
			Project: project,
			Commands: hardhat.Commands{
				Clean:   command("touch " + cleaned),
				Build:   command("touch " + built),
				Rebuild: command("true"),
			},
		})
		_, err := p.Contracts(ctx)
		require.NoError(t, err)
		assert.FileExists(t, cleaned)
		assert.FileExists(t, built)
	})

	t.Run("happy_empty_commands_are_skipped", func(t *testing.T) {
		p := newPlugin(t, hardhat.Config{
			Project:  newProject(t),
			Tool:     "bindgen-test-no-such-tool",
			Commands: hardhat.Commands{Clean: command(""), Build: command(""), Rebuild: command("")},
		})
		contracts, err := p.Contracts(ctx)
		require.NoError(t, err)
		assert.Len(t, contracts, 2)
	})

	t.Run("err_clean_fails", func(t *testing.T) {
		project := newProject(t)
		built := filepath.Join(project, "built")
		p := newPlugin(t, hardhat.Config{
			Project:  project,
			Commands: hardhat.Commands{Clean: command("false"), Build: command("touch " + built), Rebuild: command("true")},
		})
		contracts, err := p.Contracts(ctx)
		require.Error(t, err)
		assert.Nil(t, contracts)

		buildErr := bindgen.BuildCommandError{}
		require.True(t, errors.As(err, &buildErr))
		assert.Equal(t, "clean", buildErr.Step)
		assert.NoFileExists(t, built, "build should not run after clean failed")
	})

	t.Run("err_build_fails", func(t *testing.T) {
		p := newPlugin(t, hardhat.Config{
			Project:  newProject(t),
			Commands: hardhat.Commands{Clean: command("true"), Build: command("false"), Rebuild: command("true")},
		})
		_, err := p.Contracts(ctx)
		buildErr := bindgen.BuildCommandError{}
		require.True(t, errors.As(err, &buildErr))
		assert.Equal(t, "build", buildErr.Step)
		assert.Equal(t, "false", buildErr.Command)
	})

	t.Run("err_missing_artifacts", func(t *testing.T) {
		project := newProject(t)
		require.NoError(t, os.RemoveAll(filepath.Join(project, "artifacts")))
		p := newPlugin(t, hardhat.Config{Project: project, Commands: noop()})
		_, err := p.Contracts(ctx)
		resolutionErr := bindgen.ResolutionError{}
		require.True(t, errors.As(err, &resolutionErr))
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("err_invalid_artifact", func(t *testing.T) {
		project := newProject(t)
		path := filepath.Join(project, "artifacts", "contracts", "Token.sol", "Token.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
		p := newPlugin(t, hardhat.Config{Project: project, Commands: noop()})
		_, err := p.Contracts(ctx)
		require.Error(t, err)
	})
}

func Test_Plugin_Watch_Hooks(t *testing.T) {
	ctx := context.Background()
	project := newProject(t)
	artifacts := filepath.Join(project, "artifacts")
	p := newPlugin(t, hardhat.Config{Project: project, Commands: noop(), NamePrefix: "Local"})
	spec := p.Watch()

	assert.Equal(t, []string{filepath.Join(artifacts, "**", "*.json")}, spec.Paths)
	require.NotNil(t, spec.Command)

	t.Run("add", func(t *testing.T) {
		contract, err := spec.OnAdd(ctx, filepath.Join(artifacts, "contracts", "Counter.sol", "Counter.json"))
		require.NoError(t, err)
		require.NotNil(t, contract)
		assert.Equal(t, "LocalCounter", contract.Name)
	})

	t.Run("excluded_paths", func(t *testing.T) {
		for _, path := range []string{
			filepath.Join(artifacts, "contracts", "Counter.sol", "Counter.dbg.json"),
			filepath.Join(artifacts, "build-info", "6c4b1a2f.json"),
			filepath.Join(project, "package.json"),
		} {
			contract, err := spec.OnChange(ctx, path)
			require.NoError(t, err, path)
			assert.Nil(t, contract, path)

			_, ok, err := spec.OnRemove(ctx, path)
			require.NoError(t, err, path)
			assert.False(t, ok, path)
		}
	})

	t.Run("empty_abi", func(t *testing.T) {
		contract, err := spec.OnChange(ctx, filepath.Join(artifacts, "contracts", "IEmpty.sol", "IEmpty.json"))
		require.NoError(t, err)
		assert.Nil(t, contract)
	})
}

func Test_Plugin_OnRemove(t *testing.T) {
	ctx := context.Background()
	project := newProject(t)
	artifacts := filepath.Join(project, "artifacts", "contracts")
	original := filepath.Join(artifacts, "Counter.sol", "Counter.json")
	duplicate := filepath.Join(artifacts, "Legacy.sol", "Counter.json")
	require.NoError(t, copy.Copy(original, duplicate))

	p := newPlugin(t, hardhat.Config{Project: project, Commands: noop()})

	require.NoError(t, os.Remove(original))
	name, ok, err := p.OnRemove(ctx, original)
	require.NoError(t, err)
	assert.Equal(t, "Counter", name)
	assert.False(t, ok, "another artifact still defines the contract")

	require.NoError(t, os.Remove(duplicate))
	name, ok, err = p.OnRemove(ctx, duplicate)
	require.NoError(t, err)
	assert.Equal(t, "Counter", name)
	assert.True(t, ok)
}

func Test_Plugin_WatchSources(t *testing.T) {
	project := newProject(t)
	marker := filepath.Join(t.TempDir(), "rebuilt")
	stdout := &bytes.Buffer{}
	p := newPlugin(t, hardhat.Config{
		Project: project,
		Commands: hardhat.Commands{
			Clean:   command("true"),
			Build:   command("true"),
			Rebuild: command("touch " + marker),
		},
		Stdout: stdout,
		Settle: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Watch().Command(ctx) }()
	// Give the source watcher time to start.
	time.Sleep(300 * time.Millisecond)

	source := filepath.Join(project, "contracts", "Counter.sol")
	require.NoError(t, os.Chmod(source, 0o600))
	time.Sleep(300 * time.Millisecond)
	assert.NoFileExists(t, marker, "permission changes should not trigger a rebuild")

	require.NoError(t, os.WriteFile(source, []byte("// changed\n"), 0o600))
	assert.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "watch command did not return")
	}
}
