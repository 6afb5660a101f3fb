// Package catalog loads a mapping catalog: the peers, schemas and relations
// taking part in exchange, the mappings between them, and the local facts
// each peer contributes. A loaded catalog generates the delta and
// translation rules that the schema graph, the unfolder and the exchange
// evaluator work from.
package catalog

import (
	"sort"
	"strings"

	"github.com/teranos/orx/datalog"
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/schema"
)

// LocalSuffix names the relation holding a relation's local contributions.
const LocalSuffix = "_L"

// ProvenancePrefix names the relation recording a mapping's derivations.
const ProvenancePrefix = "P_"

// RelationInfo is one declared or generated relation.
type RelationInfo struct {
	Relation datalog.Relation
	Arity    int
	// Local is set on the generated local-contribution relations.
	Local bool
	// Provenance is set on generated provenance relations.
	Provenance bool
}

// Mapping is one parsed catalog mapping.
type Mapping struct {
	Name       string
	Text       string
	Heads      []*datalog.Atom
	Body       []*datalog.Atom
	Provenance datalog.Relation
}

// Facts are the local tuples of one relation.
type Facts struct {
	Relation datalog.Relation
	Rows     [][]string
}

// Catalog is a loaded mapping catalog. It is immutable once built.
type Catalog struct {
	Path   string
	Format string

	relations []RelationInfo
	byKey     map[string]int
	byName    map[string][]int
	mappings  []*Mapping
	builtin   []string
	facts     []Facts
	rules     []*datalog.Rule
}

var _ schema.Catalog = (*Catalog)(nil)

// Relations returns every relation in declaration order, generated ones
// included.
func (c *Catalog) Relations() []RelationInfo {
	return c.relations
}

// Relation looks up a relation by identity key.
func (c *Catalog) Relation(key string) (RelationInfo, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return RelationInfo{}, false
	}
	return c.relations[i], true
}

// Arity returns the arity of the relation with the given key.
func (c *Catalog) Arity(key string) (int, bool) {
	info, ok := c.Relation(key)
	return info.Arity, ok
}

// Resolve finds a relation by qualified key or by bare name. A bare name
// must be unique across peers and schemas.
func (c *Catalog) Resolve(name string) (RelationInfo, error) {
	if info, ok := c.Relation(name); ok {
		return info, nil
	}
	if strings.Contains(name, ".") {
		return RelationInfo{}, errors.NewNotFoundError("relation %s", name)
	}
	hits := c.byName[name]
	switch len(hits) {
	case 0:
		return RelationInfo{}, errors.NewNotFoundError("relation %s", name)
	case 1:
		return c.relations[hits[0]], nil
	default:
		var keys []string
		for _, i := range hits {
			keys = append(keys, c.relations[i].Relation.Key())
		}
		return RelationInfo{}, errors.WithHintf(
			errors.NewInvalidRequestError("relation name %s is ambiguous", name),
			"qualify it as one of %s", strings.Join(keys, ", "))
	}
}

// MappingByName returns the named mapping.
func (c *Catalog) MappingByName(name string) (*Mapping, bool) {
	for _, m := range c.mappings {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// AllMappings returns the parsed mappings in file order.
func (c *Catalog) AllMappings() []*Mapping {
	return c.mappings
}

// DeltaAndTranslationRules returns the local delta rules followed by, per
// mapping, its source-to-provenance rule and its provenance-to-target rules.
func (c *Catalog) DeltaAndTranslationRules() []*datalog.Rule {
	return c.rules
}

// ProvenanceRelationForMapping returns the provenance relation of the named
// mapping.
func (c *Catalog) ProvenanceRelationForMapping(name string) (datalog.Relation, bool) {
	m, ok := c.MappingByName(name)
	if !ok {
		return datalog.Relation{}, false
	}
	return m.Provenance, true
}

// ProvenanceRelations returns the keys of every provenance relation.
func (c *Catalog) ProvenanceRelations() []string {
	out := make([]string, len(c.mappings))
	for i, m := range c.mappings {
		out[i] = m.Provenance.Key()
	}
	return out
}

// BuiltInSchemas lists the schemas marked builtin.
func (c *Catalog) BuiltInSchemas() []string {
	return c.builtin
}

// Mappings describes every mapping by its source and target relations.
func (c *Catalog) Mappings() []schema.MappingInfo {
	out := make([]schema.MappingInfo, len(c.mappings))
	for i, m := range c.mappings {
		info := schema.MappingInfo{Name: m.Name}
		for _, a := range m.Body {
			info.Sources = append(info.Sources, a.Relation)
		}
		for _, a := range m.Heads {
			info.Targets = append(info.Targets, a.Relation)
		}
		out[i] = info
	}
	return out
}

// LocalFacts returns the local tuples keyed to their local-contribution
// relations, in declaration order.
func (c *Catalog) LocalFacts() []Facts {
	return c.facts
}

// Peers returns the distinct peer names in sorted order.
func (c *Catalog) Peers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range c.relations {
		if p := r.Relation.Peer; p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
