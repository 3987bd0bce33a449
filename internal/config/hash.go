package config

import (
	"encoding/json"
	"hash/fnv"
)

// fingerprint identifies a config by content. It returns 0 for nil.
func fingerprint(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	h := fnv.New64a()
	if err := json.NewEncoder(h).Encode(cfg); err != nil {
		return 0
	}
	return h.Sum64()
}
