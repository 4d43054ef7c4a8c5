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

package cache

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/hyperledger-labs/bindgen"
)

const (
	// DefaultDirName is the directory, relative to user's home directory,
	// that is used when no cache directory is configured.
	DefaultDirName = ".bindgen/cache"

	dirFileMode  = os.FileMode(0o750)
	fileFileMode = os.FileMode(0o600)
)

// keys matching this pattern are used as file names directly.
var safeKey = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// DefaultDir returns the default cache directory in the home directory of the
// current user. It should be called once at startup and the result passed to
// New.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "locating home directory")
	}
	return filepath.Join(home, DefaultDirName), nil
}

// Cache is a directory of cached ABIs, one file per key.
// The methods defined over it are safe for concurrent access.
type Cache struct {
	dir string

	mutex sync.Mutex
	locks map[string]*sync.Mutex // Per key write locks.
}

// New returns a cache that stores its entries in the given directory.
// The directory is not created until EnsureDir or Write is called.
func New(dir string) *Cache {
	return &Cache{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// EnsureDir creates the cache directory if it does not exist.
func (c *Cache) EnsureDir() error {
	return errors.Wrap(os.MkdirAll(c.dir, dirFileMode), "creating cache directory")
}

// Path returns the path of the file holding the entry for the given key.
//
// Keys made of file name safe characters are used as is. Other keys, for
// example JSON encoded multi-chain addresses, are replaced by their hash.
func (c *Cache) Path(key string) string {
	if safeKey.MatchString(key) {
		return filepath.Join(c.dir, key+".json")
	}
	return filepath.Join(c.dir, "k-"+crypto.Keccak256Hash([]byte(key)).Hex()[2:]+".json")
}

// Read returns the cached ABI for the given key. isPresent is false if there
// is no entry for the key; err is set only if an entry exists but cannot be
// read.
func (c *Cache) Read(key string) (_ bindgen.ABI, isPresent bool, _ error) {
	data, err := os.ReadFile(c.Path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "reading cache entry")
	}
	return bindgen.ABI(data), true, nil
}

// Write stores the ABI for the given key, replacing any previous entry, even
// if it is identical.
func (c *Cache) Write(key string, abi bindgen.ABI) error {
	lock := c.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := c.EnsureDir(); err != nil {
		return err
	}
	tempFile, err := os.CreateTemp(c.dir, ".entry-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file for cache entry")
	}
	tempName := tempFile.Name()
	_, err = tempFile.Write(abi)
	if closeErr := tempFile.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tempName, fileFileMode)
	}
	if err != nil {
		os.Remove(tempName) // nolint: errcheck, gosec
		return errors.Wrap(err, "writing cache entry")
	}
	if err = os.Rename(tempName, c.Path(key)); err != nil {
		os.Remove(tempName) // nolint: errcheck, gosec
		return errors.Wrap(err, "replacing cache entry")
	}
	return nil
}

func (c *Cache) keyLock(key string) *sync.Mutex {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}
