// Package store is a registry of dag.KV backends.
// Each backend subpackage registers itself in an init function,
// so importing it (perhaps with a blank import) makes it available to Create.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/bobg/dag"
)

// Factory creates a dag.KV from a configuration map.
type Factory func(context.Context, map[string]interface{}) (dag.KV, error)

var (
	mu       sync.Mutex
	registry = make(map[string]Factory)
)

// Register makes a backend available under the given key.
func Register(key string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[key] = f
}

// Create creates a dag.KV using the backend registered under key.
func Create(ctx context.Context, key string, conf map[string]interface{}) (dag.KV, error) {
	mu.Lock()
	f, ok := registry[key]
	mu.Unlock()
	if !ok {
		return nil, errors.Errorf("key %s not found in registry", key)
	}
	return f(ctx, conf)
}

// CreateNested creates a dag.KV from the map in conf[param],
// whose "type" entry names the backend.
// It is for backends that wrap other backends.
func CreateNested(ctx context.Context, conf map[string]interface{}, param string) (dag.KV, error) {
	nested, ok := conf[param].(map[string]interface{})
	if !ok {
		return nil, errors.Errorf(`missing "%s" parameter`, param)
	}
	nestedType, ok := nested["type"].(string)
	if !ok {
		return nil, errors.Errorf(`"%s" parameter missing "type"`, param)
	}
	return Create(ctx, nestedType, nested)
}

// Keys returns the registered backend keys in sorted order.
func Keys() []string {
	mu.Lock()
	defer mu.Unlock()

	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
