package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// encodedPatch is a Patch with values already serialised, the form every
// backend persists.
type encodedPatch struct {
	set    map[string][]byte
	remove []string
}

func (p Patch) encode() (encodedPatch, error) {
	ep := encodedPatch{
		set:    make(map[string][]byte, len(p.Set)),
		remove: slices.Clone(p.Remove),
	}
	for k, v := range p.Set {
		if k == "" {
			return encodedPatch{}, ErrEmptyKey
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return encodedPatch{}, fmt.Errorf("%w: %s: %w", ErrEncodeValue, k, err)
		}
		ep.set[k] = raw
	}
	for _, k := range p.Remove {
		if k == "" {
			return encodedPatch{}, ErrEmptyKey
		}
	}
	return ep, nil
}

// keys returns every key the patch touches, sorted and unique.
func (p encodedPatch) keys() []string {
	keys := make([]string, 0, len(p.set)+len(p.remove))
	for k := range p.set {
		keys = append(keys, k)
	}
	keys = append(keys, p.remove...)
	slices.Sort(keys)
	return slices.Compact(keys)
}

// apply merges the patch into state in place.
func (p encodedPatch) apply(state map[string][]byte) {
	for k, v := range p.set {
		state[k] = v
	}
	for _, k := range p.remove {
		delete(state, k)
	}
}

// changes compares the previous encoded values of the touched keys with the
// outcome of the patch. prev holds only keys that existed.
func (p encodedPatch) changes(prev map[string][]byte) Changes {
	next := maps.Clone(prev)
	if next == nil {
		next = make(map[string][]byte)
	}
	p.apply(next)

	out := make(Changes)
	for _, k := range p.keys() {
		oldRaw, hadOld := prev[k]
		newRaw, hasNew := next[k]
		if hadOld == hasNew && bytes.Equal(oldRaw, newRaw) {
			continue
		}
		c := Change{Key: k}
		if hadOld {
			c.OldValue = decodeValue(oldRaw)
		}
		if hasNew {
			c.NewValue = decodeValue(newRaw)
		}
		out[k] = c
	}
	return out
}

func decodeValue(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func decodeValues(raw map[string][]byte) Values {
	out := make(Values, len(raw))
	for k, v := range raw {
		out[k] = decodeValue(v)
	}
	return out
}
