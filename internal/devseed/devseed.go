// Package devseed loads fixture files used to pre-populate mock stores and
// the sandbox server. Files are YAML or JSON lists of entries:
//
//	- key: user:1
//	  value: {name: test, value: 123}
//	  ttl_seconds: 60
//	- key: broken
//	  raw: not-json
//
// value is re-encoded as JSON; raw is stored verbatim.
package devseed

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry is a resolved seed record.
type Entry struct {
	Key   string
	Value []byte
	TTL   time.Duration
}

type fileEntry struct {
	Key        string  `yaml:"key"`
	Value      any     `yaml:"value"`
	Raw        *string `yaml:"raw"`
	TTLSeconds *int    `yaml:"ttl_seconds"`
}

// Load reads and resolves the seed file at path.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("devseed: %s: %w", path, err)
	}
	return entries, nil
}

// Parse resolves seed entries from YAML or JSON bytes.
func Parse(data []byte) ([]Entry, error) {
	var raw []fileEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for i, fe := range raw {
		if strings.TrimSpace(fe.Key) == "" {
			return nil, fmt.Errorf("entry %d: key is required", i)
		}
		e := Entry{Key: fe.Key}
		if fe.Raw != nil {
			e.Value = []byte(*fe.Raw)
		} else {
			encoded, err := json.Marshal(fe.Value)
			if err != nil {
				return nil, fmt.Errorf("entry %q: encode value: %w", fe.Key, err)
			}
			e.Value = encoded
		}
		if fe.TTLSeconds != nil {
			if *fe.TTLSeconds < 0 {
				return nil, fmt.Errorf("entry %q: negative ttl_seconds", fe.Key)
			}
			e.TTL = time.Duration(*fe.TTLSeconds) * time.Second
		}
		entries = append(entries, e)
	}
	return entries, nil
}
