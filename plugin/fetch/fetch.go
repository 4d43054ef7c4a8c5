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

// Package fetch implements a plugin that resolves contract ABIs over the
// network, with a disk cache as fallback.
//
// For each contract, a request is built and sent. On success, the response
// is parsed and written through to the cache. On failure (network or parse
// error alike), the cached ABI for the contract is returned if there is one;
// otherwise the original error is returned.
package fetch

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hyperledger-labs/bindgen"
	"github.com/hyperledger-labs/bindgen/cache"
	"github.com/hyperledger-labs/bindgen/log"
)

// Default values for the optional configuration parameters.
const (
	DefaultName        = "fetch"
	DefaultTimeout     = 5 * time.Second
	DefaultConcurrency = 4

	maxResponseSize = 32 << 20
)

type (
	// Contract identifies a contract to be fetched.
	Contract struct {
		Name    string
		Address bindgen.Address
	}

	// RequestFunc builds the request for fetching the ABI of a contract.
	RequestFunc func(ctx context.Context, contract Contract) (*http.Request, error)

	// ParseFunc extracts the ABI from a response body.
	ParseFunc func(body []byte) (bindgen.ABI, error)

	// CacheKeyFunc returns the key under which the ABI of a contract is cached.
	CacheKeyFunc func(contract Contract) string

	// Config defines the parameters required to configure a fetch plugin.
	Config struct {
		Name      string // Defaults to DefaultName.
		Contracts []Contract

		Request  RequestFunc  // Required.
		Parse    ParseFunc    // Defaults to ParseRawABI.
		CacheKey CacheKeyFunc // Defaults to DefaultCacheKey.

		Cache       *cache.Cache // Required.
		Client      *http.Client // Defaults to a client without timeout; Timeout is applied per request.
		Timeout     time.Duration
		Concurrency int // Max number of requests in flight.

		Logger log.Logger
	}

	// Result is the outcome of a live fetch. Exactly one of the fields is set.
	Result struct {
		ABI bindgen.ABI
		Err error
	}

	// Plugin resolves contract ABIs over the network.
	Plugin struct {
		log.Logger
		cfg Config
	}
)

// DefaultCacheKey returns the canonical string of the contract address, or
// the contract name if it has no address.
func DefaultCacheKey(contract Contract) string {
	if key := contract.Address.CanonicalString(); key != "" {
		return key
	}
	return contract.Name
}

// ParseRawABI treats the response body as the ABI itself and validates it.
func ParseRawABI(body []byte) (bindgen.ABI, error) {
	abi := bindgen.ABI(body)
	if _, err := abi.Parse(); err != nil {
		return nil, err
	}
	return abi, nil
}

// URLRequest returns a RequestFunc that sends a GET request to the given URL
// template with the given headers. The placeholders {name}, {address} are
// replaced with the contract name and the canonical address string.
func URLRequest(urlTemplate string, headers map[string]string) RequestFunc {
	return func(ctx context.Context, contract Contract) (*http.Request, error) {
		url := strings.NewReplacer(
			"{name}", contract.Name,
			"{address}", contract.Address.CanonicalString(),
		).Replace(urlTemplate)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, errors.Wrap(err, "building request")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	}
}

// New returns a fetch plugin for the given configuration.
func New(cfg Config) (*Plugin, error) {
	if cfg.Request == nil {
		return nil, errors.New("request function is required")
	}
	if cfg.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Parse == nil {
		cfg.Parse = ParseRawABI
	}
	if cfg.CacheKey == nil {
		cfg.CacheKey = DefaultCacheKey
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewLoggerWithField("plugin", cfg.Name)
	}
	return &Plugin{
		Logger: cfg.Logger,
		cfg:    cfg,
	}, nil
}

// Name returns the name of the plugin.
func (p *Plugin) Name() string {
	return p.cfg.Name
}

// Validate ensures the cache directory exists.
func (p *Plugin) Validate(_ context.Context) error {
	if err := p.cfg.Cache.EnsureDir(); err != nil {
		return bindgen.NewPrerequisiteError(p.cfg.Name, "cache directory "+p.cfg.Cache.Dir(), "", err)
	}
	return nil
}

// Contracts fetches all configured contracts. Fetches run in parallel, the
// returned list is in configuration order. Contracts with an empty ABI are
// dropped.
//
// If any contract can be neither fetched nor read from the cache, a
// ResolutionError wrapping the original fetch error is returned and no
// contracts are returned.
func (p *Plugin) Contracts(ctx context.Context) ([]bindgen.ContractConfig, error) {
	abis := make([]bindgen.ABI, len(p.cfg.Contracts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i := range p.cfg.Contracts {
		i := i
		g.Go(func() error {
			abi, err := p.resolve(gctx, p.cfg.Contracts[i])
			if err != nil {
				return bindgen.NewResolutionError(p.cfg.Name, p.cfg.Contracts[i].Name, err)
			}
			abis[i] = abi
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	contracts := make([]bindgen.ContractConfig, 0, len(abis))
	for i, abi := range abis {
		if abi.IsEmpty() {
			p.WithField("contract", p.cfg.Contracts[i].Name).Debug("Dropping contract with empty abi")
			continue
		}
		contracts = append(contracts, bindgen.ContractConfig{
			Address: p.cfg.Contracts[i].Address,
			Name:    p.cfg.Contracts[i].Name,
			ABI:     abi,
		})
	}
	return contracts, nil
}

// resolve fetches the ABI of one contract and falls back to the cache on
// failure.
func (p *Plugin) resolve(ctx context.Context, contract Contract) (bindgen.ABI, error) {
	key := p.cfg.CacheKey(contract)
	logger := p.WithFields(log.Fields{"contract": contract.Name, "cacheKey": key})

	result := p.Fetch(ctx, contract)
	if result.Err == nil {
		if err := p.cfg.Cache.Write(key, result.ABI); err != nil {
			logger.Warnf("Writing abi to cache: %v", err)
		}
		return result.ABI, nil
	}

	logger.Warnf("Fetching abi: %v; trying cache", result.Err)
	cached, hit, err := p.cfg.Cache.Read(key)
	if err != nil {
		logger.Warnf("Reading abi from cache: %v", err)
	}
	abi, err := ResolveWithFallback(result, cached, hit)
	if err == nil {
		logger.Info("Using cached abi")
	}
	return abi, err
}

// Fetch sends the request for the given contract and parses the response.
// Network errors, unsuccessful status codes and parse errors are all
// reported in Result.Err.
func (p *Plugin) Fetch(ctx context.Context, contract Contract) Result {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := p.cfg.Request(ctx, contract)
	if err != nil {
		return Result{Err: err}
	}
	resp, err := p.cfg.Client.Do(req)
	if err != nil {
		return Result{Err: errors.WithStack(err)}
	}
	defer resp.Body.Close() // nolint: errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Result{Err: errors.Wrap(err, "reading response")}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{Err: errors.Errorf("unexpected response status %s", resp.Status)}
	}
	abi, err := p.cfg.Parse(body)
	if err != nil {
		return Result{Err: errors.WithMessage(err, "parsing response")}
	}
	return Result{ABI: abi}
}

// ResolveWithFallback decides the ABI to use given the result of a live fetch
// and the cache lookup. A successful fetch always wins; a failed fetch uses
// the cached value on a hit and returns the original fetch error on a miss.
func ResolveWithFallback(result Result, cached bindgen.ABI, hit bool) (bindgen.ABI, error) {
	if result.Err == nil {
		return result.ABI, nil
	}
	if hit {
		return cached, nil
	}
	return nil, result.Err
}
