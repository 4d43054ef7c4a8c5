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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hyperledger-labs/bindgen/cache"
	"github.com/hyperledger-labs/bindgen/config"
	"github.com/hyperledger-labs/bindgen/generate"
	"github.com/hyperledger-labs/bindgen/log"
	"github.com/hyperledger-labs/bindgen/plugin"
	"github.com/hyperledger-labs/bindgen/watch"
)

const (
	// flag names for generate command.
	configfileF = "config" // can only be specified in flag, not via config file.
	watchF      = "watch"  // can only be specified in flag, not via config file.
	settleF     = "settle" // can only be specified in flag, not via config file.
	outF        = "out"
	packageF    = "package"
	cachedirF   = "cachedir"
	loglevelF   = "loglevel"
	logfileF    = "logfile"
)

// Flags corresponding to configuration parameters. Each of these flags can
// individually override the value in the config file.
var generateCfgFlags = []string{
	outF,
	packageF,
	cachedirF,
	loglevelF,
	logfileF,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	defineGenerateCmdFlags()
}

func defineGenerateCmdFlags() {
	generateCmd.Flags().StringP(configfileF, "c", config.DefaultFile, "config file")
	generateCmd.Flags().BoolP(watchF, "w", false, "keep running and update the bindings as the sources change")
	generateCmd.Flags().Duration(settleF, watch.DefaultSettle,
		"time a file must be unchanged before it is picked up in watch mode")

	// All these flags should have zero values for defaults, as their only purpose is to allow the user to
	// explicitly override the configuration.
	generateCmd.Flags().String(outF, "", "Output directory of the generated bindings")
	generateCmd.Flags().String(packageF, "", "Package name of the generated bindings")
	generateCmd.Flags().String(cachedirF, "", "Directory for caching fetched ABIs")
	generateCmd.Flags().String(loglevelF, "", "Log level. Supported levels: debug, info, error")
	generateCmd.Flags().String(logfileF, "", "Log file path. Use empty string for stdout")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate bindings for all configured contracts",
	Long: `Resolve the contracts of all plugins in the config file and generate a
Go binding for each of them. Bindings of contracts that are no longer defined
are removed from the output directory.

Configuration can be specified in the config file and overridden via flags.

With --watch, bindgen keeps running after the first generation and updates the
bindings of individual contracts as the plugin sources change.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	fs := cmd.Flags()
	out := cmd.OutOrStdout()

	cfg, err := parseConfig(fs)
	if err != nil {
		return err
	}
	if err = log.InitLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		return errors.WithMessage(err, "initializing logger")
	}
	defer log.Close() // nolint: errcheck
	if cfg.LogLevel == "debug" {
		fmt.Fprintf(out, "Running with the below config:\n%s\n", prettify(cfg))
	}

	registry, err := plugin.NewRegistryFromConfig(cfg.Plugins, plugin.Deps{
		Cache:  cache.New(cfg.CachePath()),
		Dir:    cfg.Dir,
		Stdout: out,
	})
	if err != nil {
		return err
	}
	gen, err := generate.New(generate.Config{
		Out:     cfg.Path(cfg.Out),
		Package: cfg.Package,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = registry.Run(ctx, gen); err != nil {
		return err
	}
	manifest, err := gen.ReadManifest()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, greenf("Generated %d binding(s) in %s", len(manifest), cfg.Path(cfg.Out)))

	watchMode, err := fs.GetBool(watchF)
	if err != nil {
		return errors.WithStack(err)
	}
	if !watchMode {
		return nil
	}
	settle, err := fs.GetDuration(settleF)
	if err != nil {
		return errors.WithStack(err)
	}
	return watchPlugins(ctx, out, registry, gen, settle)
}

// parseConfig reads the config file selected by the flags. Values in the
// config flags, when specified, take precedence over the config file.
func parseConfig(fs *pflag.FlagSet) (config.Config, error) {
	cfgFile, err := fs.GetString(configfileF)
	if err != nil {
		return config.Config{}, errors.WithStack(err)
	}
	v := config.NewViper(cfgFile)
	if err = bindFlags(v, fs, generateCfgFlags...); err != nil {
		return config.Config{}, err
	}
	if err = v.ReadInConfig(); err != nil {
		return config.Config{}, errors.Wrapf(err, "reading config file %s", cfgFile)
	}
	cfg, err := config.Unmarshal(v, cfgFile)
	return cfg, errors.WithMessagef(err, "config file %s", cfgFile)
}

// watchOptions returns the options of the plugin watchers. Each watcher also
// closes itself on SIGINT or SIGTERM, so that the coordinator loops end even
// if the context is not observed.
func watchOptions(settle time.Duration) watch.Options {
	return watch.Options{Settle: settle, Signals: true}
}

// watchPlugins runs the watch coordinator for all plugins that support it,
// until the context is cancelled.
func watchPlugins(ctx context.Context, out io.Writer, registry *plugin.Registry, gen *generate.Generator,
	settle time.Duration,
) error {
	watchers := registry.Watchers()
	if len(watchers) == 0 {
		fmt.Fprintln(out, "None of the configured plugins supports watch mode")
		return nil
	}

	coordinator := watch.NewCoordinator(gen, watchOptions(settle))
	if err := coordinator.Start(ctx, watchers); err != nil {
		return err
	}
	fmt.Fprintln(out, greenf("Watching %d plugin(s) for changes, press Ctrl+C to stop", len(watchers)))

	<-ctx.Done()
	err := coordinator.Close()
	coordinator.Wait()
	return errors.WithMessage(err, "closing watchers")
}
