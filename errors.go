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

package bindgen

import (
	"fmt"

	"github.com/pkg/errors"
)

// PrerequisiteError indicates that an external dependency required by a
// plugin, such as a build tool or a project directory, is missing.
//
// It is returned by Plugin.Validate, before any generation work begins.
type PrerequisiteError struct {
	Plugin      string
	Requirement string
	Remedy      string // Optional instruction for fixing the problem.
	err         error
}

// Error implements error interface.
func (e PrerequisiteError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Plugin, e.Requirement)
	if e.err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.err)
	}
	if e.Remedy != "" {
		msg = fmt.Sprintf("%s\n%s", msg, e.Remedy)
	}
	return msg
}

// Unwrap returns the original error.
func (e PrerequisiteError) Unwrap() error {
	return e.err
}

// NewPrerequisiteError constructs and returns a PrerequisiteError.
func NewPrerequisiteError(plugin, requirement, remedy string, err error) error {
	return errors.WithStack(PrerequisiteError{
		Plugin:      plugin,
		Requirement: requirement,
		Remedy:      remedy,
		err:         err,
	})
}

// ResolutionError indicates that contracts could not be resolved from a
// source and no fallback was available. It carries the original cause.
type ResolutionError struct {
	Plugin   string
	Contract string // Empty if the failure is not specific to one contract.
	err      error
}

// Error implements error interface.
func (e ResolutionError) Error() string {
	if e.Contract == "" {
		return fmt.Sprintf("%s: resolving contracts: %v", e.Plugin, e.err)
	}
	return fmt.Sprintf("%s: resolving contract %s: %v", e.Plugin, e.Contract, e.err)
}

// Unwrap returns the original error.
func (e ResolutionError) Unwrap() error {
	return e.err
}

// NewResolutionError constructs and returns a ResolutionError.
func NewResolutionError(plugin, contract string, err error) error {
	return errors.WithStack(ResolutionError{
		Plugin:   plugin,
		Contract: contract,
		err:      err,
	})
}

// BuildCommandError indicates that an external build command (clean, build or
// rebuild) failed. It is as fatal as a ResolutionError.
type BuildCommandError struct {
	Plugin  string
	Step    string
	Command string
	Output  string // Combined output of the command, if captured.
	err     error
}

// Error implements error interface.
func (e BuildCommandError) Error() string {
	msg := fmt.Sprintf("%s: %s command %q failed: %v", e.Plugin, e.Step, e.Command, e.err)
	if e.Output != "" {
		msg = fmt.Sprintf("%s\n%s", msg, e.Output)
	}
	return msg
}

// Unwrap returns the original error.
func (e BuildCommandError) Unwrap() error {
	return e.err
}

// NewBuildCommandError constructs and returns a BuildCommandError.
func NewBuildCommandError(plugin, step, command, output string, err error) error {
	return errors.WithStack(BuildCommandError{
		Plugin:  plugin,
		Step:    step,
		Command: command,
		Output:  output,
		err:     err,
	})
}

// NameCollisionError indicates that two contracts in one resolution pass
// share the same name.
type NameCollisionError struct {
	Name            string
	FirstPlugin     string
	DuplicatePlugin string
}

// Error implements error interface.
func (e NameCollisionError) Error() string {
	if e.FirstPlugin == e.DuplicatePlugin {
		return fmt.Sprintf("contract name %q must be unique: defined more than once by %s", e.Name, e.FirstPlugin)
	}
	return fmt.Sprintf("contract name %q must be unique: defined by %s and %s",
		e.Name, e.FirstPlugin, e.DuplicatePlugin)
}

// NewNameCollisionError constructs and returns a NameCollisionError.
func NewNameCollisionError(name, firstPlugin, duplicatePlugin string) error {
	return errors.WithStack(NameCollisionError{
		Name:            name,
		FirstPlugin:     firstPlugin,
		DuplicatePlugin: duplicatePlugin,
	})
}
