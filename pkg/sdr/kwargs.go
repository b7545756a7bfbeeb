package sdr

import (
	"sort"
	"strings"
)

// Kwargs is an ordered list of key/value pairs. Order is preserved because
// gain elements and settings are applied in the order the user gave them.
type Kwargs struct {
	keys []string
	vals []string
}

// ParseKwargs parses "k1=v1,k2=v2". A key with no "=" gets an empty value,
// surrounding whitespace is trimmed and empty keys are dropped.
func ParseKwargs(s string) Kwargs {
	var kw Kwargs
	for _, pair := range strings.Split(s, ",") {
		key, val := pair, ""
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			key, val = pair[:idx], pair[idx+1:]
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		kw.Set(key, strings.TrimSpace(val))
	}
	return kw
}

func KwargsFromMap(m map[string]string) Kwargs {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var kw Kwargs
	for _, k := range keys {
		kw.Set(k, m[k])
	}
	return kw
}

func (kw Kwargs) Clone() Kwargs {
	return Kwargs{
		keys: append([]string(nil), kw.keys...),
		vals: append([]string(nil), kw.vals...),
	}
}

func (kw Kwargs) Len() int {
	return len(kw.keys)
}

func (kw Kwargs) Key(i int) string {
	return kw.keys[i]
}

func (kw Kwargs) Value(i int) string {
	return kw.vals[i]
}

func (kw Kwargs) Get(key string) (string, bool) {
	for i, k := range kw.keys {
		if k == key {
			return kw.vals[i], true
		}
	}
	return "", false
}

// Set replaces an existing key in place or appends a new one.
func (kw *Kwargs) Set(key, val string) {
	for i, k := range kw.keys {
		if k == key {
			kw.vals[i] = val
			return
		}
	}
	kw.keys = append(kw.keys, key)
	kw.vals = append(kw.vals, val)
}

// Matches reports whether every pair in filter is present in kw with the
// same value.
func (kw Kwargs) Matches(filter Kwargs) bool {
	for i := 0; i < filter.Len(); i++ {
		v, ok := kw.Get(filter.Key(i))
		if !ok || v != filter.Value(i) {
			return false
		}
	}
	return true
}

func (kw Kwargs) Map() map[string]string {
	ret := make(map[string]string, kw.Len())
	for i := range kw.keys {
		ret[kw.keys[i]] = kw.vals[i]
	}
	return ret
}

func (kw Kwargs) String() string {
	var b strings.Builder
	for i := range kw.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(kw.keys[i])
		b.WriteByte('=')
		b.WriteString(kw.vals[i])
	}
	return b.String()
}
