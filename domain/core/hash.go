package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 characters, enough for log lines.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// DatasetHash identifies the exact bytes a table was parsed from.
type DatasetHash Hash

func NewDatasetHash(data []byte) DatasetHash { return DatasetHash(NewHash(data)) }

func (h DatasetHash) String() string { return Hash(h).String() }

// ComputeParamsHash hashes a key/value set independently of map order.
func ComputeParamsHash(params map[string]string) Hash {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(fmt.Sprintf("%s=%s;", key, params[key]))
	}

	return NewHash([]byte(data.String()))
}
