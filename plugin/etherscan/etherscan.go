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

// Package etherscan implements a plugin that fetches verified contract ABIs
// from the Etherscan API. It is a specialisation of the fetch plugin, and so
// falls back to the disk cache when the API is not reachable.
package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/bindgen"
	"github.com/hyperledger-labs/bindgen/cache"
	"github.com/hyperledger-labs/bindgen/log"
	"github.com/hyperledger-labs/bindgen/plugin/fetch"
)

// Default values for the optional configuration parameters.
const (
	DefaultName    = "etherscan"
	DefaultBaseURL = "https://api.etherscan.io/v2/api"
)

type (
	// Contract is a contract deployed on the configured chain.
	Contract struct {
		Name    string
		Address bindgen.Address
	}

	// Config defines the parameters required to configure an etherscan plugin.
	Config struct {
		Name      string // Defaults to DefaultName.
		APIKey    string
		ChainID   uint64
		BaseURL   string // Defaults to DefaultBaseURL.
		Contracts []Contract

		Cache  *cache.Cache
		Client *http.Client
		Logger log.Logger
	}

	// response is the envelope of every Etherscan API response.
	response struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Result  string `json:"result"`
	}

	// Plugin is a fetch plugin that queries the Etherscan API.
	Plugin struct {
		*fetch.Plugin
		cfg Config
	}
)

// New returns an etherscan plugin for the given configuration.
func New(cfg Config) (*Plugin, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	contracts := make([]fetch.Contract, len(cfg.Contracts))
	for i, c := range cfg.Contracts {
		contracts[i] = fetch.Contract{Name: c.Name, Address: c.Address}
	}
	p, err := fetch.New(fetch.Config{
		Name:      cfg.Name,
		Contracts: contracts,
		Request:   Request(cfg.BaseURL, cfg.ChainID, cfg.APIKey),
		Parse:     Parse,
		CacheKey:  CacheKey(cfg.ChainID),
		Cache:     cfg.Cache,
		Client:    cfg.Client,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Plugin{Plugin: p, cfg: cfg}, nil
}

// Validate checks that an API key and a chain are configured, and that every
// contract has an address on that chain. It then prepares the cache.
func (p *Plugin) Validate(ctx context.Context) error {
	if p.cfg.APIKey == "" {
		return bindgen.NewPrerequisiteError(p.cfg.Name, "api key is required",
			"get a key at https://etherscan.io/myapikey and set it in the plugin settings", nil)
	}
	if p.cfg.ChainID == 0 {
		return bindgen.NewPrerequisiteError(p.cfg.Name, "chain id is required", "", nil)
	}
	for _, c := range p.cfg.Contracts {
		if _, ok := c.Address.ForChain(p.cfg.ChainID); !ok {
			return bindgen.NewPrerequisiteError(p.cfg.Name,
				fmt.Sprintf("contract %s has no address for chain %d", c.Name, p.cfg.ChainID), "", nil)
		}
	}
	return p.Plugin.Validate(ctx)
}

// Request returns a RequestFunc for the getabi action of the contract module.
func Request(baseURL string, chainID uint64, apiKey string) fetch.RequestFunc {
	return func(ctx context.Context, contract fetch.Contract) (*http.Request, error) {
		addr, ok := contract.Address.ForChain(chainID)
		if !ok {
			return nil, errors.Errorf("no address for chain %d", chainID)
		}
		query := url.Values{}
		query.Set("chainid", strconv.FormatUint(chainID, 10))
		query.Set("module", "contract")
		query.Set("action", "getabi")
		query.Set("address", addr.Hex())
		query.Set("apikey", apiKey)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+query.Encode(), nil)
		return req, errors.Wrap(err, "building request")
	}
}

// Parse decodes an API response. A status of "0" is an error, in which case
// the message and result are reported. Otherwise the result holds the ABI
// as a JSON encoded string.
func Parse(body []byte) (bindgen.ABI, error) {
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decoding response")
	}
	if resp.Status == "0" {
		return nil, errors.Errorf("%s: %s", resp.Message, resp.Result)
	}
	return fetch.ParseRawABI([]byte(resp.Result))
}

// CacheKey returns a CacheKeyFunc that keys entries by chain ID and the
// address on that chain.
func CacheKey(chainID uint64) fetch.CacheKeyFunc {
	return func(contract fetch.Contract) string {
		addr, ok := contract.Address.ForChain(chainID)
		if !ok {
			return fetch.DefaultCacheKey(contract)
		}
		return fmt.Sprintf("%d:%s", chainID, addr.Hex())
	}
}
