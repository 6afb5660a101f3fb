package sqlexec

import (
	"context"
	"database/sql"
	"slices"
	"strconv"
	"strings"

	"github.com/teranos/orx/datalog"
	"github.com/teranos/orx/errors"
)

// TableName returns the table backing rel: "r_" followed by the identity
// key with every non-identifier byte replaced by '_'.
func TableName(rel datalog.Relation) string {
	key := rel.Key()
	var b strings.Builder
	b.Grow(len(key) + 2)
	b.WriteString("r_")
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func column(i int) string { return "c" + strconv.Itoa(i) }

func columns(arity int) string {
	cols := make([]string, arity)
	for i := range cols {
		cols[i] = column(i)
	}
	return strings.Join(cols, ", ")
}

func createTable(rel datalog.Relation, arity int) string {
	defs := make([]string, arity)
	for i := range defs {
		defs[i] = column(i) + " TEXT NOT NULL"
	}
	return "CREATE TABLE IF NOT EXISTS " + quote(TableName(rel)) + " (" +
		strings.Join(defs, ", ") + ", PRIMARY KEY (" + columns(arity) + "))"
}

// EnsureRelation creates the table for rel if it does not exist yet.
func (b *Backend) EnsureRelation(ctx context.Context, rel datalog.Relation, arity int) error {
	if arity <= 0 {
		return errors.Mark(errors.Newf("relation %s: nullary relations are not supported", rel.Key()), errors.ErrUnsupported)
	}
	table := TableName(rel)
	b.mu.Lock()
	defer b.mu.Unlock()
	if known, ok := b.tables[table]; ok {
		if known != arity {
			return errors.NewInvalidRequestError("relation %s used with arity %d and %d", rel.Key(), known, arity)
		}
		return nil
	}
	if _, err := b.db.ExecContext(ctx, createTable(rel, arity)); err != nil {
		return errors.Wrapf(err, "create table for %s", rel.Key())
	}
	b.tables[table] = arity
	return nil
}

// LoadFacts inserts rows into rel's table, creating it when needed. It
// returns the number of rows that were not already present.
func (b *Backend) LoadFacts(ctx context.Context, rel datalog.Relation, arity int, rows [][]string) (int64, error) {
	if err := b.EnsureRelation(ctx, rel, arity); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrapf(err, "begin load of %s", rel.Key())
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO "+quote(TableName(rel))+
		" ("+columns(arity)+") VALUES ("+placeholders(arity)+")")
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrapf(err, "prepare load of %s", rel.Key())
	}
	defer stmt.Close()

	var inserted int64
	for i, row := range rows {
		if len(row) != arity {
			tx.Rollback()
			return 0, errors.NewInvalidRequestError("relation %s: row %d has %d values, want %d", rel.Key(), i, len(row), arity)
		}
		args := make([]interface{}, arity)
		for j, v := range row {
			args[j] = v
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			tx.Rollback()
			return 0, errors.Wrapf(err, "load row %d into %s", i, rel.Key())
		}
		n, _ := res.RowsAffected()
		inserted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrapf(err, "commit load of %s", rel.Key())
	}
	return inserted, nil
}

// Clear deletes every row of rel.
func (b *Backend) Clear(ctx context.Context, rel datalog.Relation) error {
	if _, err := b.db.ExecContext(ctx, "DELETE FROM "+quote(TableName(rel))); err != nil {
		return errors.Wrapf(err, "clear %s", rel.Key())
	}
	return nil
}

// Count returns the number of rows in rel.
func (b *Backend) Count(ctx context.Context, rel datalog.Relation) (int64, error) {
	var n int64
	err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quote(TableName(rel))).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "count %s", rel.Key())
	}
	return n, nil
}

// Rows returns every row of rel in sorted order.
func (b *Backend) Rows(ctx context.Context, rel datalog.Relation) ([][]string, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT * FROM "+quote(TableName(rel)))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", rel.Key())
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", rel.Key())
	}
	var out [][]string
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrapf(err, "scan %s", rel.Key())
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = v.String
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", rel.Key())
	}
	slices.SortFunc(out, slices.Compare[[]string])
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
