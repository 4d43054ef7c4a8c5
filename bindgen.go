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
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Address is the deployment address of a contract. It holds either a single
// address valid on every chain or a set of addresses indexed by chain ID.
// The zero value represents a contract without a known deployment.
type Address struct {
	Single  *common.Address
	ByChain map[uint64]common.Address
}

// NewAddress returns an Address holding a single address.
func NewAddress(addr common.Address) Address {
	return Address{Single: &addr}
}

// NewMultiChainAddress returns an Address holding one address per chain ID.
func NewMultiChainAddress(byChain map[uint64]common.Address) Address {
	byChainCopy := make(map[uint64]common.Address, len(byChain))
	for chainID, addr := range byChain {
		byChainCopy[chainID] = addr
	}
	return Address{ByChain: byChainCopy}
}

// IsZero returns true if no address is set.
func (a Address) IsZero() bool {
	return a.Single == nil && len(a.ByChain) == 0
}

// ForChain returns the address for the given chain. A single address is
// valid on every chain.
func (a Address) ForChain(chainID uint64) (common.Address, bool) {
	if a.Single != nil {
		return *a.Single, true
	}
	addr, ok := a.ByChain[chainID]
	return addr, ok
}

// CanonicalString returns a stable string representation of the address.
//
// Single addresses are returned as checksummed hex. Multi-chain addresses are
// returned as a JSON object with chain IDs in ascending order, so that equal
// address sets always produce equal strings. Zero value returns an empty string.
func (a Address) CanonicalString() string {
	if a.Single != nil {
		return a.Single.Hex()
	}
	if len(a.ByChain) == 0 {
		return ""
	}
	chainIDs := make([]uint64, 0, len(a.ByChain))
	for chainID := range a.ByChain {
		chainIDs = append(chainIDs, chainID)
	}
	sort.Slice(chainIDs, func(i, j int) bool { return chainIDs[i] < chainIDs[j] })

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, chainID := range chainIDs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.FormatUint(chainID, 10)))
		buf.WriteByte(':')
		buf.WriteString(strconv.Quote(a.ByChain[chainID].Hex()))
	}
	buf.WriteByte('}')
	return buf.String()
}

// MarshalJSON encodes a single address as a hex string and a multi-chain
// address as an object of hex strings by chain ID. The zero value is null.
func (a Address) MarshalJSON() ([]byte, error) {
	switch {
	case a.Single != nil:
		return json.Marshal(a.Single.Hex())
	case len(a.ByChain) > 0:
		return []byte(a.CanonicalString()), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes any representation accepted by ParseAddress.
func (a *Address) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return errors.WithStack(err)
	}
	parsed, err := ParseAddress(v)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress parses an address from its configuration representation: a hex
// string, or a map of chain ID to hex string. Nil input returns a zero Address.
func ParseAddress(v interface{}) (Address, error) {
	switch t := v.(type) {
	case nil:
		return Address{}, nil
	case string:
		if t == "" {
			return Address{}, nil
		}
		if !common.IsHexAddress(t) {
			return Address{}, errors.Errorf("invalid address %q", t)
		}
		return NewAddress(common.HexToAddress(t)), nil
	case map[string]interface{}:
		byChain := make(map[uint64]common.Address, len(t))
		for k, val := range t {
			chainID, err := strconv.ParseUint(k, 10, 64)
			if err != nil {
				return Address{}, errors.Wrapf(err, "parsing chain id %q", k)
			}
			s, ok := val.(string)
			if !ok || !common.IsHexAddress(s) {
				return Address{}, errors.Errorf("invalid address %v for chain %d", val, chainID)
			}
			byChain[chainID] = common.HexToAddress(s)
		}
		return NewMultiChainAddress(byChain), nil
	case map[interface{}]interface{}:
		converted := make(map[string]interface{}, len(t))
		for k, val := range t {
			converted[toString(k)] = val
		}
		return ParseAddress(converted)
	case map[int]interface{}:
		converted := make(map[string]interface{}, len(t))
		for k, val := range t {
			converted[strconv.Itoa(k)] = val
		}
		return ParseAddress(converted)
	default:
		return Address{}, errors.Errorf("unsupported address type %T", v)
	}
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case uint64:
		return strconv.FormatUint(t, 10)
	default:
		b, _ := json.Marshal(t) // nolint: errchkjson	// only used for error messages on invalid keys.
		return string(b)
	}
}

// ABI is the JSON encoded description of a contract interface. It is kept in
// its raw form, so that item order and fields unknown to the parser are
// preserved when emitting bindings. It must not be modified once resolved.
type ABI json.RawMessage

// IsEmpty returns true if the ABI has no items.
func (a ABI) IsEmpty() bool {
	trimmed := bytes.TrimSpace(a)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return false
	}
	return len(items) == 0
}

// Parse decodes the ABI using the go-ethereum ABI parser. It is used to
// validate an ABI before it is accepted from a source.
func (a ABI) Parse() (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(a))
	return parsed, errors.Wrap(err, "parsing abi")
}

// MarshalJSON returns the raw ABI.
func (a ABI) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	return a, nil
}

// UnmarshalJSON stores a copy of the raw ABI.
func (a *ABI) UnmarshalJSON(data []byte) error {
	if a == nil {
		return errors.New("bindgen.ABI: UnmarshalJSON on nil pointer")
	}
	*a = append((*a)[0:0], data...)
	return nil
}

// ContractConfig is the resolved description of one contract, as produced by
// a source adapter and consumed by the code emitter.
type ContractConfig struct {
	Address Address
	Name    string
	ABI     ABI

	// Plugin is the name of the plugin that resolved the contract. It is set
	// by the registry and the watch coordinator, not by the plugins.
	Plugin string
}

//go:generate mockery --name Plugin --output ./internal/mocks

// Plugin is a source adapter that resolves contract ABIs.
//
// Validate is called once before any other method and must not mutate state
// other than preparing local resources (such as cache directories).
// Contracts may be called several times; each call returns the complete set of
// contracts of this source, with empty ABIs already dropped.
type Plugin interface {
	Name() string
	Validate(ctx context.Context) error
	Contracts(ctx context.Context) ([]ContractConfig, error)
}

//go:generate mockery --name Watcher --output ./internal/mocks

// Watcher is implemented by plugins that support incremental regeneration.
type Watcher interface {
	Plugin
	Watch() *WatchSpec
}

// WatchSpec describes the files a plugin wants to observe and the hooks that
// translate a file event into an updated or removed contract.
type WatchSpec struct {
	// Command is started once when watching begins. It may block until the
	// context is cancelled. Optional.
	Command func(ctx context.Context) error

	// Paths are glob patterns of files to observe.
	Paths []string

	// OnAdd and OnChange return the contract for the given path, or nil if
	// the path does not hold a contract.
	OnAdd    func(ctx context.Context, path string) (*ContractConfig, error)
	OnChange func(ctx context.Context, path string) (*ContractConfig, error)

	// OnRemove returns the name of the contract that is gone. ok is false when
	// the contract must not be removed, for example because another file still
	// defines a contract with the same name.
	OnRemove func(ctx context.Context, path string) (name string, ok bool, _ error)
}

//go:generate mockery --name Emitter --output ./internal/mocks

// Emitter receives resolved contracts and writes the generated bindings.
//
// Emit is used for a full resolution pass and replaces everything emitted
// earlier. Upsert and Remove are used for incremental updates in watch mode;
// they return a NameCollisionError if the contract was emitted for another
// plugin.
type Emitter interface {
	Emit(ctx context.Context, contracts []ContractConfig) error
	Upsert(ctx context.Context, contract ContractConfig) error
	Remove(ctx context.Context, plugin, name string) error
}
