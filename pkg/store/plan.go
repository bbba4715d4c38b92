package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Record is a row destined for one table. Fields lists its columns in a fixed
// order and Value returns the value for one of them.
type Record interface {
	Fields() []string
	Value(field string) any
}

// InsertPlan selects how Exec writes a batch. It is one of Ignore, Upsert or
// UpdateByKey.
type InsertPlan interface {
	statement(table string, fields []string) (query string, args []string, err error)
}

// Ignore inserts rows and skips any that collide with an existing key.
type Ignore struct{}

// Upsert inserts rows and, on a Conflict key collision, applies Update: a
// list of assignments that may refer to the incoming row as excluded.<col>
// and to the stored row as <table>.<col>.
type Upsert struct {
	Conflict []string
	Update   []string
}

// UpdateByKey updates the Set columns of the row matching Key. Each record
// must expose every Key and Set field.
type UpdateByKey struct {
	Key []string
	Set []string
}

func (Ignore) statement(table string, fields []string) (string, []string, error) {
	return insertInto(table, fields) + " ON CONFLICT DO NOTHING", fields, nil
}

func (p Upsert) statement(table string, fields []string) (string, []string, error) {
	if len(p.Conflict) == 0 {
		return "", nil, fmt.Errorf("upsert into %s: no conflict columns", table)
	}
	if len(p.Update) == 0 {
		return "", nil, fmt.Errorf("upsert into %s: no update assignments", table)
	}
	query := fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s",
		insertInto(table, fields),
		strings.Join(p.Conflict, ", "),
		strings.Join(p.Update, ", "))
	return query, fields, nil
}

func (p UpdateByKey) statement(table string, _ []string) (string, []string, error) {
	if len(p.Key) == 0 || len(p.Set) == 0 {
		return "", nil, fmt.Errorf("update %s: key and set columns are required", table)
	}

	set := make([]string, len(p.Set))
	for i, col := range p.Set {
		set[i] = col + " = ?"
	}
	where := make([]string, len(p.Key))
	for i, col := range p.Key {
		where[i] = col + " = ?"
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		table, strings.Join(set, ", "), strings.Join(where, " AND "))
	args := append(append([]string{}, p.Set...), p.Key...)
	return query, args, nil
}

func insertInto(table string, fields []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(fields)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(fields, ", "), placeholders)
}

// SetExcluded assigns the incoming value of col.
func SetExcluded(col string) string {
	return fmt.Sprintf("%s = excluded.%s", col, col)
}

// SetIfPresent assigns the incoming value of col unless it is NULL.
func SetIfPresent(table, col string) string {
	return fmt.Sprintf("%s = coalesce(excluded.%s, %s.%s)", col, col, table, col)
}

// SetIfUnset keeps the stored value of col and only fills it when NULL.
func SetIfUnset(table, col string) string {
	return fmt.Sprintf("%s = coalesce(%s.%s, excluded.%s)", col, table, col, col)
}

// Batch is one plan applied to records of one table. All records must
// share the same field list.
type Batch struct {
	Table   string
	Plan    InsertPlan
	Records []Record
}

// Exec writes a batch through a single prepared statement and returns the
// number of affected rows.
func (c conn) Exec(ctx context.Context, b Batch) (int64, error) {
	if len(b.Records) == 0 {
		return 0, nil
	}

	query, args, err := b.Plan.statement(b.Table, b.Records[0].Fields())
	if err != nil {
		return 0, err
	}

	start := time.Now()
	stmt, err := c.q.PrepareContext(ctx, c.dialect.Rebind(query))
	if err != nil {
		return 0, fmt.Errorf("prepare %s: %w", b.Table, err)
	}
	defer stmt.Close()

	var affected int64
	values := make([]any, len(args))
	for i, r := range b.Records {
		for j, field := range args {
			values[j] = r.Value(field)
		}
		res, err := stmt.ExecContext(ctx, values...)
		if err != nil {
			return affected, fmt.Errorf("write %s row %d: %w", b.Table, i, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += n
		}
	}

	c.logger.DebugWithFields("batch written", map[string]interface{}{
		"table":    b.Table,
		"plan":     fmt.Sprintf("%T", b.Plan),
		"records":  len(b.Records),
		"affected": affected,
		"duration": time.Since(start),
	})
	return affected, nil
}
