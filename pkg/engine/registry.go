package engine

import (
	"maps"
	"slices"
	"sync"

	"github.com/zsiec/avwrap/pkg/averr"
)

var (
	mu      sync.RWMutex
	codecs  = make(map[string]CodecEngine)
	formats = make(map[string]FormatEngine)
)

// RegisterCodec makes a codec engine available by name. It panics if e is nil
// or the name is already registered.
func RegisterCodec(e CodecEngine) {
	mu.Lock()
	defer mu.Unlock()
	if e == nil {
		panic("engine: RegisterCodec engine is nil")
	}
	if _, dup := codecs[e.Name()]; dup {
		panic("engine: RegisterCodec called twice for " + e.Name())
	}
	codecs[e.Name()] = e
}

// RegisterFormat makes a format engine available by name. It panics if e is
// nil or the name is already registered.
func RegisterFormat(e FormatEngine) {
	mu.Lock()
	defer mu.Unlock()
	if e == nil {
		panic("engine: RegisterFormat engine is nil")
	}
	if _, dup := formats[e.Name()]; dup {
		panic("engine: RegisterFormat called twice for " + e.Name())
	}
	formats[e.Name()] = e
}

// Codec returns the registered codec engine called name.
func Codec(name string) (CodecEngine, error) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := codecs[name]
	if !ok {
		return nil, averr.NotFound("engine.codec", "codec engine "+name)
	}
	return e, nil
}

// Format returns the registered format engine called name.
func Format(name string) (FormatEngine, error) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := formats[name]
	if !ok {
		return nil, averr.NotFound("engine.format", "format engine "+name)
	}
	return e, nil
}

// Codecs returns the sorted names of the registered codec engines.
func Codecs() []string {
	mu.RLock()
	defer mu.RUnlock()
	return slices.Sorted(maps.Keys(codecs))
}

// Formats returns the sorted names of the registered format engines.
func Formats() []string {
	mu.RLock()
	defer mu.RUnlock()
	return slices.Sorted(maps.Keys(formats))
}

func unregisterAll() {
	mu.Lock()
	defer mu.Unlock()
	codecs = make(map[string]CodecEngine)
	formats = make(map[string]FormatEngine)
}
