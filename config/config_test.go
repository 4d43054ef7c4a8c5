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

package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gotest.tools/assert"

	"github.com/hyperledger-labs/bindgen/cache"
	"github.com/hyperledger-labs/bindgen/config"
)

var (
	testdataDir       = "testdata"
	validConfigFile   = "valid.yaml"
	invalidConfigFile = "invalid.yaml"
	minimalConfigFile = "minimal.yaml"
)

func Test_ParseConfig(t *testing.T) {
	absTestdataDir, err := filepath.Abs(testdataDir)
	require.NoError(t, err)

	t.Run("happy", func(t *testing.T) {
		gotCfg, err := config.ParseConfig(filepath.Join(testdataDir, validConfigFile))
		require.NoError(t, err)

		require.Len(t, gotCfg.Plugins, 2)
		hardhat, etherscan := gotCfg.Plugins[0], gotCfg.Plugins[1]
		assert.Equal(t, "hardhat", hardhat.Type)
		assert.Equal(t, "", hardhat.Name)
		assert.Equal(t, "./hardhat-project", hardhat.Settings["project"])
		assert.Equal(t, "Local", hardhat.Settings["nameprefix"], "keys are case insensitive")
		assert.Equal(t, "etherscan", etherscan.Type)
		assert.Equal(t, "mainnet", etherscan.Name)
		assert.Equal(t, "test-api-key", etherscan.Settings["apikey"])

		gotCfg.Plugins = nil
		assert.DeepEqual(t, config.Config{
			Out:      "./generated",
			Package:  "bindings",
			CacheDir: "./test-cache",
			LogLevel: "debug",
			LogFile:  "./bindgen.log",
			Dir:      absTestdataDir,
		}, gotCfg)
		assert.Equal(t, filepath.Join(absTestdataDir, "generated"), gotCfg.Path(gotCfg.Out))
		assert.Equal(t, filepath.Join(absTestdataDir, "test-cache"), gotCfg.CachePath(),
			"cache directory is relative to the config file, like the output directory")
	})

	t.Run("happy_defaults", func(t *testing.T) {
		gotCfg, err := config.ParseConfig(filepath.Join(testdataDir, minimalConfigFile))
		require.NoError(t, err)

		defaultCacheDir, err := cache.DefaultDir()
		require.NoError(t, err)
		assert.Equal(t, config.DefaultOut, gotCfg.Out)
		assert.Equal(t, config.DefaultPackage, gotCfg.Package)
		assert.Equal(t, config.DefaultLogLevel, gotCfg.LogLevel)
		assert.Equal(t, defaultCacheDir, gotCfg.CacheDir)
		assert.Equal(t, defaultCacheDir, gotCfg.CachePath())
		require.Len(t, gotCfg.Plugins, 1)
		assert.Equal(t, "localfs", gotCfg.Plugins[0].Type)
	})

	t.Run("err_invalid_file", func(t *testing.T) {
		_, err := config.ParseConfig(filepath.Join(testdataDir, invalidConfigFile))
		require.Error(t, err)
		t.Log(err)
	})

	t.Run("err_missing_file", func(t *testing.T) {
		_, err := config.ParseConfig("missing_file.yaml")
		require.Error(t, err)
		t.Log(err)
	})
}

func Test_Config_Path(t *testing.T) {
	cfg := config.Config{Dir: "/project"}
	assert.Equal(t, filepath.Join("/project", "out"), cfg.Path("out"))
	assert.Equal(t, "/abs/out", cfg.Path("/abs/out"))
	assert.Equal(t, "", cfg.Path(""))
}
