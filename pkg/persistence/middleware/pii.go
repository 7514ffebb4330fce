package middleware

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/aretw0/flashsol/pkg/ports"
)

// Mask replaces masked field values.
const Mask = "***"

// DefaultPIIPatterns matches field names that must never be stored in clear.
var DefaultPIIPatterns = []string{
	`(?i)^(private_?key|secret_?key|secret|mnemonic|seed_?phrase|passkey|pin)$`,
}

type piiMiddleware struct {
	ports.KVStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks JSON object fields
// whose names match the patterns before values reach the store.
// Values that are not JSON objects are stored unchanged.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.KVStore) ports.KVStore {
		return &piiMiddleware{KVStore: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return m.KVStore.Set(ctx, key, m.mask(value), ttl)
}

func (m *piiMiddleware) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return m.KVStore.SetNX(ctx, key, m.mask(value), ttl)
}

func (m *piiMiddleware) mask(value []byte) []byte {
	var doc map[string]any
	if json.Unmarshal(value, &doc) != nil {
		return value
	}
	if !maskMap(doc, m.patterns) {
		return value
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return value
	}
	return out
}

// maskMap masks in place and reports whether anything changed.
func maskMap(m map[string]any, patterns []*regexp.Regexp) bool {
	changed := false
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked, changed = true, true
				break
			}
		}
		if masked {
			continue
		}

		switch sub := v.(type) {
		case map[string]any:
			if maskMap(sub, patterns) {
				changed = true
			}
		case []any:
			for _, item := range sub {
				if obj, ok := item.(map[string]any); ok && maskMap(obj, patterns) {
					changed = true
				}
			}
		}
	}
	return changed
}
