package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/teranos/orx/datalog"
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/internal/syntax"
)

// SupportedFormat is the range of catalog format versions this build reads.
const SupportedFormat = ">= 1.0, < 2.0"

type fileCatalog struct {
	Format   string        `toml:"format" yaml:"format"`
	Peers    []filePeer    `toml:"peers" yaml:"peers"`
	Mappings []fileMapping `toml:"mappings" yaml:"mappings"`
}

type filePeer struct {
	Name    string       `toml:"name" yaml:"name"`
	Schemas []fileSchema `toml:"schemas" yaml:"schemas"`
}

type fileSchema struct {
	Name      string         `toml:"name" yaml:"name"`
	Builtin   bool           `toml:"builtin" yaml:"builtin"`
	Relations []fileRelation `toml:"relations" yaml:"relations"`
}

type fileRelation struct {
	Name  string          `toml:"name" yaml:"name"`
	Arity int             `toml:"arity" yaml:"arity"`
	Keys  []int           `toml:"keys" yaml:"keys"`
	Local [][]interface{} `toml:"local" yaml:"local"`
}

type fileMapping struct {
	Name string `toml:"name" yaml:"name"`
	Rule string `toml:"rule" yaml:"rule"`
}

// Load reads a catalog file. The format follows the extension: .toml, .yaml
// or .yml.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Mark(errors.Wrapf(err, "catalog %s", path), errors.ErrNotFound)
		}
		return nil, errors.Wrapf(err, "failed to read catalog %s", path)
	}
	c, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, errors.Wrapf(err, "catalog %s", path)
	}
	c.Path = path
	return c, nil
}

// Decode parses catalog text in the format named by ext.
func Decode(data []byte, ext string) (*Catalog, error) {
	var f fileCatalog
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "failed to parse TOML"), errors.ErrInvalidRequest)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "failed to parse YAML"), errors.ErrInvalidRequest)
		}
	default:
		return nil, errors.WithHint(
			errors.Mark(errors.Newf("unsupported catalog format %q", ext), errors.ErrUnsupported),
			"use a .toml, .yaml or .yml file")
	}
	return build(&f)
}

func checkFormat(format string) error {
	if format == "" {
		return errors.WithHint(errors.NewInvalidRequestError("catalog format version missing"),
			`add format = "1.0" at the top of the file`)
	}
	v, err := semver.NewVersion(format)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "invalid catalog format %s", format), errors.ErrInvalidRequest)
	}
	constraint, err := semver.NewConstraint(SupportedFormat)
	if err != nil {
		return errors.Wrapf(err, "invalid format constraint %s", SupportedFormat)
	}
	if !constraint.Check(v) {
		return errors.Mark(errors.Newf("catalog format %s not supported (want %s)", format, SupportedFormat),
			errors.ErrUnsupported)
	}
	return nil
}

type builder struct {
	c *Catalog
}

func build(f *fileCatalog) (*Catalog, error) {
	if err := checkFormat(f.Format); err != nil {
		return nil, err
	}
	b := &builder{c: &Catalog{
		Format: f.Format,
		byKey:  make(map[string]int),
		byName: make(map[string][]int),
	}}

	var deltas []*datalog.Rule
	for _, p := range f.Peers {
		if !isIdent(p.Name) {
			return nil, errors.NewInvalidRequestError("invalid peer name %q", p.Name)
		}
		for _, s := range p.Schemas {
			if !isIdent(s.Name) {
				return nil, errors.NewInvalidRequestError("invalid schema name %q in peer %s", s.Name, p.Name)
			}
			if s.Builtin {
				b.c.builtin = append(b.c.builtin, s.Name)
			}
			for _, r := range s.Relations {
				delta, err := b.relation(p.Name, s.Name, r)
				if err != nil {
					return nil, err
				}
				if delta != nil {
					deltas = append(deltas, delta)
				}
			}
		}
	}
	b.c.rules = append(b.c.rules, deltas...)

	for _, m := range f.Mappings {
		if err := b.mapping(m); err != nil {
			return nil, errors.Wrapf(err, "mapping %s", m.Name)
		}
	}
	return b.c, nil
}

func (b *builder) add(info RelationInfo) error {
	key := info.Relation.Key()
	if _, dup := b.c.byKey[key]; dup {
		return errors.NewInvalidRequestError("relation %s declared twice", key)
	}
	b.c.byKey[key] = len(b.c.relations)
	b.c.byName[info.Relation.Name] = append(b.c.byName[info.Relation.Name], len(b.c.relations))
	b.c.relations = append(b.c.relations, info)
	return nil
}

// relation registers r and, when it declares local data, its local
// relation, the facts and the delta rule R(x̄) :- R_L(x̄).
func (b *builder) relation(peer, schemaName string, r fileRelation) (*datalog.Rule, error) {
	if !isIdent(r.Name) {
		return nil, errors.NewInvalidRequestError("invalid relation name %q in %s.%s", r.Name, peer, schemaName)
	}
	if r.Arity <= 0 {
		return nil, errors.NewInvalidRequestError("relation %s.%s.%s: arity must be positive", peer, schemaName, r.Name)
	}
	for _, k := range r.Keys {
		if k < 0 || k >= r.Arity {
			return nil, errors.NewInvalidRequestError("relation %s.%s.%s: key position %d out of range", peer, schemaName, r.Name, k)
		}
	}
	rel := datalog.Relation{Peer: peer, Schema: schemaName, Name: r.Name, Keys: r.Keys}
	if err := b.add(RelationInfo{Relation: rel, Arity: r.Arity}); err != nil {
		return nil, err
	}
	if r.Local == nil {
		return nil, nil
	}

	local := datalog.Relation{Peer: peer, Schema: schemaName, Name: r.Name + LocalSuffix, Keys: r.Keys}
	if err := b.add(RelationInfo{Relation: local, Arity: r.Arity, Local: true}); err != nil {
		return nil, err
	}
	facts := Facts{Relation: local}
	for i, row := range r.Local {
		if len(row) != r.Arity {
			return nil, errors.NewInvalidRequestError("relation %s: local row %d has %d values, want %d",
				rel.Key(), i, len(row), r.Arity)
		}
		values := make([]string, len(row))
		for j, v := range row {
			values[j] = fmt.Sprint(v)
		}
		facts.Rows = append(facts.Rows, values)
	}
	b.c.facts = append(b.c.facts, facts)

	args := make([]datalog.Term, r.Arity)
	for i := range args {
		args[i] = datalog.Var("x" + strconv.Itoa(i))
	}
	delta := datalog.NewRule(datalog.NewAtom(rel, args...), datalog.NewAtom(local, args...))
	delta.Name = "delta_" + r.Name
	return delta, nil
}

// mapping parses m and generates P_M(v̄) :- body and, per head, H :- P_M(v̄)
// where v̄ are the body variables in first-occurrence order.
func (b *builder) mapping(m fileMapping) error {
	if !isIdent(m.Name) {
		return errors.NewInvalidRequestError("invalid mapping name %q", m.Name)
	}
	if _, dup := b.c.MappingByName(m.Name); dup {
		return errors.NewInvalidRequestError("mapping declared twice")
	}
	clause, err := datalog.ParseClause(m.Rule)
	if err != nil {
		return errors.Mark(err, errors.ErrInvalidRequest)
	}
	if clause.Negated {
		return errors.Mark(errors.New("negated mapping heads are not supported"), errors.ErrUnsupported)
	}
	if len(clause.Body) == 0 {
		return errors.NewInvalidRequestError("mapping has an empty body")
	}
	for _, a := range append(append([]*datalog.Atom{}, clause.Heads...), clause.Body...) {
		if err := b.resolve(a); err != nil {
			return err
		}
	}

	r := &datalog.Rule{Head: &datalog.Atom{}, Body: clause.Body}
	bodyVars := r.BodyVariables()
	inBody := make(map[string]bool, len(bodyVars))
	for _, v := range bodyVars {
		inBody[v] = true
	}
	for _, h := range clause.Heads {
		for _, t := range h.Args {
			if t.IsVar() && !inBody[t.Value] {
				return errors.WithHint(
					errors.NewInvalidRequestError("head variable %s of %s does not occur in the body", t.Value, h.Key()),
					"every head variable must be bound by a body atom")
			}
		}
	}

	prov := datalog.Relation{Name: ProvenancePrefix + m.Name}
	if err := b.add(RelationInfo{Relation: prov, Arity: len(bodyVars), Provenance: true}); err != nil {
		return err
	}
	vars := make([]datalog.Term, len(bodyVars))
	for i, v := range bodyVars {
		vars[i] = datalog.Var(v)
	}

	mp := &Mapping{Name: m.Name, Text: m.Rule, Heads: clause.Heads, Body: clause.Body, Provenance: prov}
	b.c.mappings = append(b.c.mappings, mp)

	source := &datalog.Rule{
		Name:    m.Name,
		Head:    datalog.NewAtom(prov, vars...),
		Body:    cloneAtoms(clause.Body),
		Mapping: true,
	}
	b.c.rules = append(b.c.rules, source)
	for _, h := range clause.Heads {
		b.c.rules = append(b.c.rules, &datalog.Rule{
			Name: m.Name,
			Head: h.Clone(),
			Body: []*datalog.Atom{datalog.NewAtom(prov, vars...)},
		})
	}
	return nil
}

// resolve binds a to its declared relation and checks the arity.
func (b *builder) resolve(a *datalog.Atom) error {
	info, err := b.c.Resolve(a.Key())
	if err != nil {
		return err
	}
	if info.Local || info.Provenance {
		return errors.NewInvalidRequestError("mapping refers to generated relation %s", info.Relation.Key())
	}
	if len(a.Args) != info.Arity {
		return errors.NewInvalidRequestError("%s has %d arguments, relation %s has arity %d",
			a, len(a.Args), info.Relation.Key(), info.Arity)
	}
	a.Relation = info.Relation
	return nil
}

func cloneAtoms(atoms []*datalog.Atom) []*datalog.Atom {
	out := make([]*datalog.Atom, len(atoms))
	for i, a := range atoms {
		out[i] = a.Clone()
	}
	return out
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !syntax.IsIdentStart(r) {
			return false
		}
		if !syntax.IsIdentRune(r) {
			return false
		}
	}
	return true
}
