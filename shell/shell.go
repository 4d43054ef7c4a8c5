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

// Package shell runs the external build commands used by build backed
// plugins. A command is configured as a single string and split on white
// space into the executable and its arguments; no shell interpolation is done.
package shell

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Command is a command line, such as "npx hardhat compile".
type Command string

// Split returns the executable and the arguments of the command.
func (c Command) Split() (name string, args []string) {
	fields := strings.Fields(string(c))
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// IsEmpty returns true if the command has no executable.
func (c Command) IsEmpty() bool {
	name, _ := c.Split()
	return name == ""
}

// String implements fmt.Stringer.
func (c Command) String() string {
	return strings.Join(strings.Fields(string(c)), " ")
}

// Run executes the command with the given working directory and waits for it
// to complete. Standard output is forwarded to stdout if it is not nil.
//
// Standard error is captured and returned as output, so that it can be
// included in error messages. No timeout is applied, other than the one
// carried by the context.
func (c Command) Run(ctx context.Context, dir string, stdout io.Writer) (output string, _ error) {
	name, args := c.Split()
	if name == "" {
		return "", errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, name, args...) // nolint: gosec	// commands are supplied by the user.
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if stdout != nil {
		cmd.Stdout = stdout
	}
	err := cmd.Run()
	return strings.TrimSpace(stderr.String()), errors.WithStack(err)
}
