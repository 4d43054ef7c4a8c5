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

// Package hardhat implements a plugin that resolves contract ABIs from the
// build artifacts of a Hardhat project. The project can be cleaned and built
// before the artifacts are read, and rebuilt whenever a source file changes
// in watch mode.
package hardhat

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/bindgen"
	"github.com/hyperledger-labs/bindgen/log"
	"github.com/hyperledger-labs/bindgen/shell"
	"github.com/hyperledger-labs/bindgen/watch"
)

// Default values for the optional configuration parameters.
const (
	DefaultName      = "hardhat"
	DefaultArtifacts = "artifacts"
	DefaultSources   = "contracts"
)

// DefaultInclude and DefaultExclude are the default artifact file patterns.
var (
	DefaultInclude = []string{"*.json"}
	DefaultExclude = []string{"build-info/**", "*.dbg.json"}
)

type (
	// Commands are the build commands run by the plugin. A nil command is
	// replaced by its default, derived from the tool. An empty command is
	// not run.
	Commands struct {
		Clean   *shell.Command
		Build   *shell.Command
		Rebuild *shell.Command
	}

	// Config defines the parameters required to configure a hardhat plugin.
	Config struct {
		Name    string // Defaults to DefaultName.
		Project string // Path to the project root.

		// Artifacts and Sources are relative to the project root.
		Artifacts string
		Sources   string

		// Include and Exclude are glob patterns matched against the path of
		// an artifact file at any depth of the artifacts directory.
		Include []string
		Exclude []string

		NamePrefix  string
		Deployments map[string]bindgen.Address // Address by contract name.

		Commands Commands

		// Tool is the command used to run hardhat. Defaults to the runner of
		// the package manager detected in the project, followed by "hardhat".
		Tool shell.Command

		// Stdout receives the output of the rebuild command.
		Stdout io.Writer

		// Settle is passed to the source watcher. Defaults to watch.DefaultSettle.
		Settle time.Duration

		Logger log.Logger
	}

	// Plugin resolves contract ABIs from hardhat artifacts.
	Plugin struct {
		log.Logger
		cfg Config
		pm  PackageManager
	}

	artifact struct {
		ContractName string      `json:"contractName"`
		ABI          bindgen.ABI `json:"abi"`
	}
)

// New returns a hardhat plugin for the given configuration. Defaults for the
// tool and commands are resolved once here.
func New(cfg Config) (*Plugin, error) {
	if cfg.Project == "" {
		return nil, errors.New("project is required")
	}
	project, err := filepath.Abs(cfg.Project)
	if err != nil {
		return nil, errors.Wrap(err, "resolving project path")
	}
	cfg.Project = project

	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Artifacts == "" {
		cfg.Artifacts = DefaultArtifacts
	}
	if cfg.Sources == "" {
		cfg.Sources = DefaultSources
	}
	if len(cfg.Include) == 0 {
		cfg.Include = DefaultInclude
	}
	if cfg.Exclude == nil {
		cfg.Exclude = DefaultExclude
	}
	for _, pattern := range append(append([]string{}, cfg.Include...), cfg.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Errorf("invalid pattern %s", pattern)
		}
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewLoggerWithField("plugin", cfg.Name)
	}

	pm := DetectPackageManager(cfg.Project)
	if cfg.Tool.IsEmpty() {
		cfg.Tool = shell.Command(pm.Runner() + " hardhat")
	}
	return &Plugin{
		Logger: cfg.Logger,
		cfg:    cfg,
		pm:     pm,
	}, nil
}

// Name returns the name of the plugin.
func (p *Plugin) Name() string {
	return p.cfg.Name
}

// Validate checks that the project exists. Unless all three build commands
// are configured explicitly, it also checks that the tool can be run.
func (p *Plugin) Validate(ctx context.Context) error {
	info, err := os.Stat(p.cfg.Project)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = errors.Errorf("%s is not a directory", p.cfg.Project)
		}
		return bindgen.NewPrerequisiteError(p.cfg.Name, "Hardhat project not found", "", err)
	}

	c := p.cfg.Commands
	if c.Clean != nil && c.Build != nil && c.Rebuild != nil {
		return nil
	}
	probe := shell.Command(p.cfg.Tool.String() + " --version")
	if output, err := probe.Run(ctx, p.cfg.Project, nil); err != nil {
		if output != "" {
			err = errors.WithMessage(err, output)
		}
		return bindgen.NewPrerequisiteError(p.cfg.Name, "hardhat must be installed to use the plugin",
			"Install it with: "+p.pm.InstallCommand("hardhat"), err)
	}
	return nil
}

// Contracts cleans and builds the project, then reads the artifacts.
func (p *Plugin) Contracts(ctx context.Context) ([]bindgen.ContractConfig, error) {
	if err := p.runStep(ctx, "clean", p.clean(), nil); err != nil {
		return nil, err
	}
	if err := p.runStep(ctx, "build", p.build(), nil); err != nil {
		return nil, err
	}
	contracts, err := p.scan()
	if err != nil {
		return nil, bindgen.NewResolutionError(p.cfg.Name, "", err)
	}
	return contracts, nil
}

// Watch observes the artifacts of the project. Its command watches the
// sources and rebuilds the project on every change.
func (p *Plugin) Watch() *bindgen.WatchSpec {
	paths := make([]string, len(p.cfg.Include))
	for i, include := range p.cfg.Include {
		paths[i] = filepath.Join(p.artifactsDir(), "**", include)
	}
	return &bindgen.WatchSpec{
		Command:  p.watchSources,
		Paths:    paths,
		OnAdd:    p.onUpdate,
		OnChange: p.onUpdate,
		OnRemove: p.OnRemove,
	}
}

// watchSources rebuilds the project whenever a source file is added, changed
// or unlinked, until the context is cancelled. Rebuild failures are logged.
func (p *Plugin) watchSources(ctx context.Context) error {
	rebuild := p.rebuild()
	if rebuild.IsEmpty() {
		return nil
	}
	w, err := watch.New([]string{filepath.Join(p.cfg.Project, p.cfg.Sources, "**")}, watch.Options{
		Settle: p.cfg.Settle,
		Logger: log.NewDerivedLoggerWithField(p.Logger, "component", "sources"),
	})
	if err != nil {
		return err
	}
	defer w.Close() // nolint: errcheck

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			p.WithFields(log.Fields{"event": ev.Kind, "path": ev.Path}).Info("Source changed, rebuilding")
			if err := p.runStep(ctx, "rebuild", rebuild, p.cfg.Stdout); err != nil {
				p.Error(err)
			}
		}
	}
}

func (p *Plugin) onUpdate(_ context.Context, path string) (*bindgen.ContractConfig, error) {
	if !p.isArtifact(path) {
		return nil, nil
	}
	contract, err := p.readArtifact(path)
	if err != nil {
		return nil, bindgen.NewResolutionError(p.cfg.Name, "", err)
	}
	if contract.ABI.IsEmpty() {
		return nil, nil
	}
	return &contract, nil
}

// OnRemove returns the name of the contract of a removed artifact. The name
// is derived from the file name. If any current artifact still yields a
// contract with this name, ok is false and the contract must be kept.
//
// The scan includes every artifact present at the time of the call; a removed
// path that is still present on disk will suppress its own removal.
func (p *Plugin) OnRemove(_ context.Context, path string) (name string, ok bool, _ error) {
	if !p.isArtifact(path) {
		return "", false, nil
	}
	name = p.cfg.NamePrefix + strings.TrimSuffix(filepath.Base(path), ".json")

	contracts, err := p.scan()
	if err != nil {
		return "", false, bindgen.NewResolutionError(p.cfg.Name, name, err)
	}
	for _, c := range contracts {
		if c.Name == name {
			return name, false, nil
		}
	}
	return name, true, nil
}

func (p *Plugin) runStep(ctx context.Context, step string, cmd shell.Command, stdout io.Writer) error {
	if cmd.IsEmpty() {
		return nil
	}
	p.WithField("command", cmd.String()).Debugf("Running %s", step)
	output, err := cmd.Run(ctx, p.cfg.Project, stdout)
	if err != nil {
		return bindgen.NewBuildCommandError(p.cfg.Name, step, cmd.String(), output, err)
	}
	return nil
}

func (p *Plugin) clean() shell.Command {
	return commandOrDefault(p.cfg.Commands.Clean, p.cfg.Tool+" clean")
}

func (p *Plugin) build() shell.Command {
	return commandOrDefault(p.cfg.Commands.Build, p.cfg.Tool+" compile")
}

func (p *Plugin) rebuild() shell.Command {
	return commandOrDefault(p.cfg.Commands.Rebuild, p.cfg.Tool+" compile")
}

func commandOrDefault(cmd *shell.Command, def shell.Command) shell.Command {
	if cmd == nil {
		return def
	}
	return *cmd
}

func (p *Plugin) artifactsDir() string {
	return filepath.Join(p.cfg.Project, p.cfg.Artifacts)
}

// isArtifact reports whether path is an artifact file: below the artifacts
// directory, matching an include pattern and no exclude pattern.
func (p *Plugin) isArtifact(path string) bool {
	rel, err := filepath.Rel(p.artifactsDir(), path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	return p.matchesRel(filepath.ToSlash(rel))
}

func (p *Plugin) matchesRel(rel string) bool {
	included := false
	for _, include := range p.cfg.Include {
		if ok, _ := doublestar.Match("**/"+include, rel); ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, exclude := range p.cfg.Exclude {
		if ok, _ := doublestar.Match("**/"+exclude, rel); ok {
			return false
		}
	}
	return true
}

// scan reads all artifacts in path order. Artifacts with an empty ABI are
// dropped.
func (p *Plugin) scan() ([]bindgen.ContractConfig, error) {
	dir := p.artifactsDir()
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		if err == nil {
			err = errors.Errorf("%s is not a directory", dir)
		}
		return nil, errors.WithMessage(err, "artifacts not found, build the project first")
	}

	var paths []string
	for _, include := range p.cfg.Include {
		matches, err := doublestar.Glob(os.DirFS(dir), "**/"+include, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Wrap(err, "listing artifacts")
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	contracts := make([]bindgen.ContractConfig, 0, len(paths))
	for i, rel := range paths {
		if i > 0 && paths[i-1] == rel {
			continue
		}
		if !p.matchesRel(rel) {
			continue
		}
		contract, err := p.readArtifact(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		if contract.ABI.IsEmpty() {
			p.WithField("artifact", rel).Debug("Dropping contract with empty abi")
			continue
		}
		contracts = append(contracts, contract)
	}
	return contracts, nil
}

func (p *Plugin) readArtifact(path string) (bindgen.ContractConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bindgen.ContractConfig{}, errors.WithStack(err)
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return bindgen.ContractConfig{}, errors.Wrapf(err, "decoding artifact %s", path)
	}
	if a.ContractName == "" {
		return bindgen.ContractConfig{}, errors.Errorf("artifact %s has no contract name", path)
	}
	return bindgen.ContractConfig{
		Address: p.cfg.Deployments[a.ContractName],
		Name:    p.cfg.NamePrefix + a.ContractName,
		ABI:     a.ABI,
	}, nil
}
