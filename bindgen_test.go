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

package bindgen_test

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger-labs/bindgen"
)

const (
	addr1 = "0x9daEdAcb21dce86Af8604Ba1A1D7F9BFE55ddd63"
	addr2 = "0x5992089d61cE79B6CF90506F70DD42B8E42FB21d"
)

func Test_Address_CanonicalString(t *testing.T) {
	t.Run("zero", func(t *testing.T) {
		var a bindgen.Address
		assert.True(t, a.IsZero())
		assert.Equal(t, "", a.CanonicalString())
	})

	t.Run("single", func(t *testing.T) {
		a := bindgen.NewAddress(common.HexToAddress(addr1))
		assert.False(t, a.IsZero())
		assert.Equal(t, addr1, a.CanonicalString())
	})

	t.Run("multi_chain_sorted", func(t *testing.T) {
		a := bindgen.NewMultiChainAddress(map[uint64]common.Address{
			10: common.HexToAddress(addr2),
			1:  common.HexToAddress(addr1),
		})
		want := `{"1":"` + addr1 + `","10":"` + addr2 + `"}`
		assert.Equal(t, want, a.CanonicalString())
		assert.True(t, json.Valid([]byte(a.CanonicalString())))
	})
}

func Test_Address_ForChain(t *testing.T) {
	single := bindgen.NewAddress(common.HexToAddress(addr1))
	got, ok := single.ForChain(42)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(addr1), got)

	multi := bindgen.NewMultiChainAddress(map[uint64]common.Address{1: common.HexToAddress(addr2)})
	_, ok = multi.ForChain(42)
	assert.False(t, ok)
	got, ok = multi.ForChain(1)
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(addr2), got)
}

func Test_Address_JSON(t *testing.T) {
	tests := []struct {
		name string
		addr bindgen.Address
		want string
	}{
		{"zero", bindgen.Address{}, `null`},
		{"single", bindgen.NewAddress(common.HexToAddress(addr1)), `"` + addr1 + `"`},
		{
			"multi_chain",
			bindgen.NewMultiChainAddress(map[uint64]common.Address{10: common.HexToAddress(addr2), 1: common.HexToAddress(addr1)}),
			`{"1":"` + addr1 + `","10":"` + addr2 + `"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.addr)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var got bindgen.Address
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, tt.addr.CanonicalString(), got.CanonicalString())
		})
	}
}

func Test_ParseAddress(t *testing.T) {
	t.Run("happy_single", func(t *testing.T) {
		a, err := bindgen.ParseAddress(addr1)
		require.NoError(t, err)
		assert.Equal(t, addr1, a.CanonicalString())
	})
	t.Run("happy_multi_chain", func(t *testing.T) {
		a, err := bindgen.ParseAddress(map[string]interface{}{"1": addr1, "10": addr2})
		require.NoError(t, err)
		got, ok := a.ForChain(10)
		require.True(t, ok)
		assert.Equal(t, common.HexToAddress(addr2), got)
	})
	t.Run("happy_nil", func(t *testing.T) {
		a, err := bindgen.ParseAddress(nil)
		require.NoError(t, err)
		assert.True(t, a.IsZero())
	})
	t.Run("err_invalid_hex", func(t *testing.T) {
		_, err := bindgen.ParseAddress("0x1234")
		require.Error(t, err)
	})
	t.Run("err_invalid_chain_id", func(t *testing.T) {
		_, err := bindgen.ParseAddress(map[string]interface{}{"mainnet": addr1})
		require.Error(t, err)
	})
	t.Run("err_unsupported_type", func(t *testing.T) {
		_, err := bindgen.ParseAddress(42)
		require.Error(t, err)
	})
}

func Test_ABI(t *testing.T) {
	tests := []struct {
		name      string
		abi       bindgen.ABI
		wantEmpty bool
	}{
		{"nil", nil, true},
		{"null", bindgen.ABI("null"), true},
		{"empty_array", bindgen.ABI(" [] "), true},
		{"one_item", bindgen.ABI(`[{"type":"function","name":"f","inputs":[],"outputs":[]}]`), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantEmpty, tt.abi.IsEmpty())
		})
	}

	t.Run("parse", func(t *testing.T) {
		parsed, err := bindgen.ABI(`[{"type":"function","name":"f","inputs":[],"outputs":[]}]`).Parse()
		require.NoError(t, err)
		assert.Contains(t, parsed.Methods, "f")

		_, err = bindgen.ABI(`{"not":"an abi"}`).Parse()
		require.Error(t, err)
	})

	t.Run("json_round_trip_preserves_bytes", func(t *testing.T) {
		raw := `[{"type":"event","name":"E","inputs":[],"anonymous":false}]`
		var c struct {
			ABI bindgen.ABI `json:"abi"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{"abi":`+raw+`}`), &c))
		assert.Equal(t, raw, string(c.ABI))
	})
}
