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

package shell_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/bindgen/shell"
)

func Test_Command_Split(t *testing.T) {
	tests := []struct {
		name     string
		cmd      shell.Command
		wantName string
		wantArgs []string
	}{
		{"simple", "npx hardhat compile", "npx", []string{"hardhat", "compile"}},
		{"extra_spaces", "  pnpm   hardhat\tclean ", "pnpm", []string{"hardhat", "clean"}},
		{"only_executable", "make", "make", []string{}},
		{"empty", "", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotName, gotArgs := tt.cmd.Split()
			assert.Equal(t, tt.wantName, gotName)
			assert.Equal(t, tt.wantArgs, gotArgs)
			assert.Equal(t, tt.wantName == "", tt.cmd.IsEmpty())
		})
	}
}

func Test_Command_Run(t *testing.T) {
	t.Run("happy_forwards_stdout", func(t *testing.T) {
		var stdout bytes.Buffer
		_, err := shell.Command("echo compiled 1 file").Run(context.Background(), t.TempDir(), &stdout)
		require.NoError(t, err)
		assert.Equal(t, "compiled 1 file\n", stdout.String())
	})

	t.Run("happy_uses_working_dir", func(t *testing.T) {
		dir := t.TempDir()
		_, err := shell.Command("touch marker").Run(context.Background(), dir, nil)
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(dir, "marker"))
		require.NoError(t, err)
	})

	t.Run("err_non_zero_exit", func(t *testing.T) {
		output, err := shell.Command("ls does-not-exist").Run(context.Background(), t.TempDir(), nil)
		require.Error(t, err)
		assert.NotEmpty(t, output)
	})

	t.Run("err_missing_executable", func(t *testing.T) {
		_, err := shell.Command("bindgen-no-such-tool --version").Run(context.Background(), t.TempDir(), nil)
		require.Error(t, err)
	})

	t.Run("err_empty", func(t *testing.T) {
		_, err := shell.Command(" ").Run(context.Background(), t.TempDir(), nil)
		require.Error(t, err)
	})
}
