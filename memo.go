package dag

import (
	"sync"
)

// Memo computes values on demand, by name,
// and remembers them.
// Errors are not remembered:
// a failed lookup is retried on the next call.
// A Memo is safe for concurrent use.
type Memo struct {
	fetch func(string) (interface{}, error)

	mu    sync.Mutex
	cache map[string]interface{}
}

// NewMemo produces a Memo that uses fetch to compute missing values.
func NewMemo(fetch func(name string) (interface{}, error)) *Memo {
	return &Memo{
		fetch: fetch,
		cache: make(map[string]interface{}),
	}
}

// Get gets the value for name,
// computing it if this is the first request for it.
func (m *Memo) Get(name string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.cache[name]; ok {
		return v, nil
	}
	v, err := m.fetch(name)
	if err != nil {
		return nil, err
	}
	m.cache[name] = v
	return v, nil
}

// Forget discards any remembered value for name.
func (m *Memo) Forget(name string) {
	m.mu.Lock()
	delete(m.cache, name)
	m.mu.Unlock()
}
