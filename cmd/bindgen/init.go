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

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hyperledger-labs/bindgen/config"
	"github.com/hyperledger-labs/bindgen/plugin"
)

// flag names for init command.
const forceF = "force"

type (
	starterConfig struct {
		Out      string          `yaml:"out"`
		Package  string          `yaml:"package"`
		LogLevel string          `yaml:"logLevel"`
		Plugins  []starterPlugin `yaml:"plugins"`
	}

	starterPlugin struct {
		Type     string                 `yaml:"type"`
		Settings map[string]interface{} `yaml:"settings"`
	}
)

const starterHeader = `# Configuration for bindgen. Each plugin resolves a set of contracts, a Go
# binding is generated for every contract in the output directory.
# Supported plugin types: fetch, etherscan, localfs, hardhat.
`

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringP(configfileF, "c", config.DefaultFile, "path of the config file to create")
	initCmd.Flags().String(outF, config.DefaultOut, "output directory of the generated bindings")
	initCmd.Flags().String(packageF, config.DefaultPackage, "package name of the generated bindings")
	initCmd.Flags().BoolP(forceF, "f", false, "overwrite the config file if it exists")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter config file",
	Long: `Create a starter config file with a localfs plugin that reads ABIs from the
abis directory. Edit the file to add the sources of your contracts.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, _ []string) error {
	fs := cmd.Flags()
	cfgFile, _ := fs.GetString(configfileF) // nolint: errcheck	// flag is defined on this command.
	out, _ := fs.GetString(outF)            // nolint: errcheck
	pkg, _ := fs.GetString(packageF)        // nolint: errcheck
	force, _ := fs.GetBool(forceF)          // nolint: errcheck

	if err := writeStarterConfig(cfgFile, out, pkg, force); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), greenf("Created config file %s", cfgFile))
	return nil
}

func writeStarterConfig(cfgFile, out, pkg string, force bool) error {
	if _, err := os.Stat(cfgFile); err == nil && !force {
		return errors.Errorf("config file %s already exists, use --%s to overwrite it", cfgFile, forceF)
	} else if err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}

	data, err := yaml.Marshal(starterConfig{
		Out:      out,
		Package:  pkg,
		LogLevel: config.DefaultLogLevel,
		Plugins: []starterPlugin{{
			Type: plugin.TypeLocalFS,
			Settings: map[string]interface{}{
				"contracts": []map[string]string{
					{"name": "Token", "path": "abis/Token.json"},
				},
			},
		}},
	})
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}

	if dir := filepath.Dir(cfgFile); dir != "." {
		if err = os.MkdirAll(dir, 0o750); err != nil {
			return errors.WithStack(err)
		}
	}
	return errors.WithStack(os.WriteFile(cfgFile, append([]byte(starterHeader), data...), 0o600))
}
