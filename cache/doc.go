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

// Package cache implements a file backed cache of contract ABIs.
//
// Each entry is stored as one JSON file in the cache directory, containing
// the raw ABI without any envelope. The cache is best effort: it is read only
// as a fallback when a live fetch fails, and every successful fetch writes
// through to it.
//
// Writes for the same key are serialized and each write replaces the file
// atomically, so that concurrent readers never observe a partial entry.
// Writes for different keys are independent.
package cache
