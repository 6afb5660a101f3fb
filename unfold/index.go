package unfold

import (
	"sort"

	"github.com/teranos/orx/datalog"
)

// Index maps a relation key to the rules whose head has that key.
type Index map[string][]*datalog.Rule

// NewIndex indexes rules by head key, keeping input order per key.
func NewIndex(rules []*datalog.Rule) Index {
	ix := make(Index)
	for _, r := range rules {
		key := r.Head.Key()
		ix[key] = append(ix[key], r)
	}
	return ix
}

// Defines reports whether key is the head of some rule, i.e. whether atoms
// over key can be substituted.
func (ix Index) Defines(key string) bool {
	return len(ix[key]) > 0
}

// Keys returns the indexed relation keys in sorted order.
func (ix Index) Keys() []string {
	keys := make([]string, 0, len(ix))
	for k := range ix {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
