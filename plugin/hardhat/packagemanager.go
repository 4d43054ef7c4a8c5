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

package hardhat

import (
	"os"
	"path/filepath"
)

// PackageManager is a JavaScript package manager.
type PackageManager string

// Enumeration of the supported package managers.
const (
	NPM  PackageManager = "npm"
	PNPM PackageManager = "pnpm"
	Yarn PackageManager = "yarn"
	Bun  PackageManager = "bun"
)

var lockfiles = []struct {
	name string
	pm   PackageManager
}{
	{"pnpm-lock.yaml", PNPM},
	{"yarn.lock", Yarn},
	{"bun.lockb", Bun},
	{"bun.lock", Bun},
	{"package-lock.json", NPM},
}

// DetectPackageManager returns the package manager of the project in dir, by
// looking for a lockfile in dir and its parents. Defaults to npm.
func DetectPackageManager(dir string) PackageManager {
	for {
		for _, l := range lockfiles {
			if _, err := os.Stat(filepath.Join(dir, l.name)); err == nil {
				return l.pm
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return NPM
		}
		dir = parent
	}
}

// Runner returns the command that runs a binary of an installed package.
func (pm PackageManager) Runner() string {
	switch pm {
	case PNPM, Yarn:
		return string(pm)
	case Bun:
		return "bunx"
	default:
		return "npx"
	}
}

// InstallCommand returns the command that adds pkg as a dev dependency.
func (pm PackageManager) InstallCommand(pkg string) string {
	switch pm {
	case PNPM:
		return "pnpm add -D " + pkg
	case Yarn:
		return "yarn add -D " + pkg
	case Bun:
		return "bun add -d " + pkg
	default:
		return "npm install --save-dev " + pkg
	}
}
