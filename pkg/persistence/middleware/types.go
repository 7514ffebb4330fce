package middleware

import "github.com/aretw0/flashsol/pkg/ports"

// Middleware allows wrapping a KVStore to add behavior.
type Middleware func(ports.KVStore) ports.KVStore

// Chain wraps store with mws. The first middleware is the outermost.
func Chain(store ports.KVStore, mws ...Middleware) ports.KVStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

// KeyPrefixes returns a matcher selecting keys that start with any prefix.
func KeyPrefixes(prefixes ...string) func(string) bool {
	return func(key string) bool {
		for _, p := range prefixes {
			if len(key) >= len(p) && key[:len(p)] == p {
				return true
			}
		}
		return false
	}
}
