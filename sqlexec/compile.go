package sqlexec

import (
	"strconv"
	"strings"

	"github.com/teranos/orx/datalog"
	"github.com/teranos/orx/errors"
)

// Statement is the SQL text of one compiled rule and its positional
// arguments.
type Statement struct {
	SQL  string
	Args []interface{}
}

// CompileRule translates rule into a single SQL statement.
//
// A rule with a body becomes INSERT OR IGNORE ... SELECT DISTINCT over the
// joined body tables; body atoms share variables through equality
// conditions and constants become bound parameters. A negated head turns the
// statement into a DELETE of the selected tuples. A rule without a body
// inserts (or deletes) its constant head.
func CompileRule(rule *datalog.Rule) (Statement, error) {
	if rule.Fake {
		return Statement{}, errors.Mark(errors.Newf("rule %s is a placeholder", rule), errors.ErrUnsupported)
	}
	if len(rule.Head.Args) == 0 {
		return Statement{}, errors.Mark(errors.Newf("rule %s: nullary head", rule), errors.ErrUnsupported)
	}
	if len(rule.Body) == 0 {
		return compileFact(rule)
	}

	c := &compiler{bound: make(map[string]string)}
	from := make([]string, len(rule.Body))
	for i, a := range rule.Body {
		alias := "t" + strconv.Itoa(i)
		from[i] = quote(TableName(a.Relation)) + " AS " + alias
		for j, t := range a.Args {
			col := alias + "." + column(j)
			if !t.IsVar() {
				c.where = append(c.where, col+" = ?")
				c.whereArgs = append(c.whereArgs, t.Value)
				continue
			}
			if prev, ok := c.bound[t.Value]; ok {
				c.where = append(c.where, col+" = "+prev)
				continue
			}
			c.bound[t.Value] = col
		}
	}

	sel := make([]string, len(rule.Head.Args))
	for i, t := range rule.Head.Args {
		if !t.IsVar() {
			sel[i] = "?"
			c.selectArgs = append(c.selectArgs, t.Value)
			continue
		}
		col, ok := c.bound[t.Value]
		if !ok {
			return Statement{}, errors.WithHint(
				errors.NewInvalidRequestError("rule %s: head variable %s is not bound by the body", rule, t.Value),
				"every head variable must occur in a body atom")
		}
		sel[i] = col
	}

	query := "SELECT DISTINCT " + strings.Join(sel, ", ") + " FROM " + strings.Join(from, ", ")
	if len(c.where) > 0 {
		query += " WHERE " + strings.Join(c.where, " AND ")
	}
	args := append(c.selectArgs, c.whereArgs...)

	table := quote(TableName(rule.Head.Relation))
	cols := columns(len(rule.Head.Args))
	if rule.NegatedHead {
		return Statement{
			SQL:  "DELETE FROM " + table + " WHERE (" + cols + ") IN (" + query + ")",
			Args: args,
		}, nil
	}
	return Statement{
		SQL:  "INSERT OR IGNORE INTO " + table + " (" + cols + ") " + query,
		Args: args,
	}, nil
}

type compiler struct {
	bound      map[string]string
	where      []string
	whereArgs  []interface{}
	selectArgs []interface{}
}

func compileFact(rule *datalog.Rule) (Statement, error) {
	args := make([]interface{}, len(rule.Head.Args))
	for i, t := range rule.Head.Args {
		if t.IsVar() {
			return Statement{}, errors.NewInvalidRequestError("fact %s has variable %s", rule, t.Value)
		}
		args[i] = t.Value
	}
	table := quote(TableName(rule.Head.Relation))
	n := len(rule.Head.Args)
	if rule.NegatedHead {
		conds := make([]string, n)
		for i := range conds {
			conds[i] = column(i) + " = ?"
		}
		return Statement{SQL: "DELETE FROM " + table + " WHERE " + strings.Join(conds, " AND "), Args: args}, nil
	}
	return Statement{
		SQL:  "INSERT OR IGNORE INTO " + table + " (" + columns(n) + ") VALUES (" + placeholders(n) + ")",
		Args: args,
	}, nil
}
