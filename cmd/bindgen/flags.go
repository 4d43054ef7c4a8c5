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
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bindFlags attaches the flags to the viper instance, so that values in the
// flags (when specified) take precedence over those in the config file.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, flags ...string) error {
	for i := range flags {
		if err := v.BindPFlag(flags[i], fs.Lookup(flags[i])); err != nil {
			return errors.Wrapf(err, "binding flag %s", flags[i])
		}
	}
	return nil
}
