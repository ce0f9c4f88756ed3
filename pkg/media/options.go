package media

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// Options is an option dictionary passed to engine open calls, e.g.
// {"probesize": "32", "preset": "fast"}. Values are strings; engines parse
// numbers themselves.
type Options map[string]string

// OptionsFromMap converts loosely typed values such as those decoded from a
// config file.
func OptionsFromMap(m map[string]interface{}) Options {
	if len(m) == 0 {
		return nil
	}
	o := make(Options, len(m))
	for k, v := range m {
		o[k] = fmt.Sprint(v)
	}
	return o
}

// Get returns the value for key and whether it was set.
func (o Options) Get(key string) (string, bool) {
	v, ok := o[key]
	return v, ok
}

// Text returns the value for key, or def when absent.
func (o Options) Text(key, def string) string {
	if v, ok := o[key]; ok {
		return v
	}
	return def
}

// Int returns key parsed as an integer, or def when absent or malformed.
func (o Options) Int(key string, def int64) int64 {
	v, ok := o[key]
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// Clone returns a copy that can be modified independently.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	return maps.Clone(o)
}

// Merge returns a copy of o overlaid with other.
func (o Options) Merge(other Options) Options {
	out := make(Options, len(o)+len(other))
	maps.Copy(out, o)
	maps.Copy(out, other)
	return out
}

// Keys returns the option names in sorted order.
func (o Options) Keys() []string {
	return slices.Sorted(maps.Keys(o))
}
