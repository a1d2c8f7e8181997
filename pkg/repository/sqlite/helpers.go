package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gatehouse-auth/gatehouse/pkg/model"
)

// execer is the statement surface shared by a tenant handle and *sql.Tx, so
// the same builders serve plain calls and transactional groups.
type execer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// likePrefix escapes LIKE metacharacters in prefix and appends the
// match-anything suffix. Queries using it must carry ESCAPE '\'.
func likePrefix(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}

// propertyStore binds the shared property statements to one of the three
// property tables. Organization properties are keyed by org_id alone
// (parentCol empty); user and role properties carry both parent id and
// org_id.
type propertyStore struct {
	table     string
	parentCol string
}

func (ps propertyStore) parentWhere(orgID, parentID string) (string, []any) {
	if ps.parentCol == "" {
		return "org_id = ?", []any{orgID}
	}
	return fmt.Sprintf("%s = ? AND org_id = ?", ps.parentCol), []any{parentID, orgID}
}

func (ps propertyStore) getAll(ctx context.Context, db execer, orgID, parentID string) ([]model.Property, error) {
	where, args := ps.parentWhere(orgID, parentID)
	query := fmt.Sprintf(
		"SELECT name, value, hidden, created_at FROM %s WHERE %s ORDER BY name ASC",
		ps.table, where,
	)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get properties: %w", err)
	}
	defer rows.Close()

	var props []model.Property
	for rows.Next() {
		prop, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		props = append(props, prop)
	}
	return props, rows.Err()
}

func (ps propertyStore) get(ctx context.Context, db execer, orgID, parentID, name string) (*model.Property, error) {
	where, args := ps.parentWhere(orgID, parentID)
	query := fmt.Sprintf(
		"SELECT name, value, hidden, created_at FROM %s WHERE %s AND name = ?",
		ps.table, where,
	)
	args = append(args, name)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	prop, err := scanProperty(rows)
	if err != nil {
		return nil, err
	}
	return &prop, rows.Err()
}

func (ps propertyStore) set(ctx context.Context, db execer, orgID, parentID string, prop model.Property) error {
	value := string(prop.Value)
	if value == "" {
		value = "null"
	}
	now := time.Now().UTC()

	var query string
	var args []any
	if ps.parentCol == "" {
		query = fmt.Sprintf(`
			INSERT INTO %s (org_id, name, value, hidden, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (org_id, name)
			DO UPDATE SET value = excluded.value, hidden = excluded.hidden, created_at = excluded.created_at
		`, ps.table)
		args = []any{orgID, prop.Name, value, prop.Hidden, now}
	} else {
		query = fmt.Sprintf(`
			INSERT INTO %s (%s, org_id, name, value, hidden, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (%s, org_id, name)
			DO UPDATE SET value = excluded.value, hidden = excluded.hidden, created_at = excluded.created_at
		`, ps.table, ps.parentCol, ps.parentCol)
		args = []any{parentID, orgID, prop.Name, value, prop.Hidden, now}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set property: %w", normalizeError(err, "property"))
	}
	return nil
}

func (ps propertyStore) delete(ctx context.Context, db execer, orgID, parentID, name string) (bool, error) {
	where, args := ps.parentWhere(orgID, parentID)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s AND name = ?", ps.table, where)
	args = append(args, name)

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to delete property: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// scanProperty scans one property row, returning the value as raw JSON.
func scanProperty(rows *sql.Rows) (model.Property, error) {
	var prop model.Property
	var value string
	if err := rows.Scan(&prop.Name, &value, &prop.Hidden, &prop.CreatedAt); err != nil {
		return model.Property{}, fmt.Errorf("failed to scan property: %w", err)
	}
	prop.Value = []byte(value)
	return prop, nil
}

// propertyMatchClause builds the single-query "ALL of N properties match"
// predicate: parents whose matching-property count equals the filter count,
// resolved in one statement instead of N round trips. innerIDCol is the
// parent id column inside the property table. orgID is empty for the
// globally visible organizations table.
func propertyMatchClause(table, innerIDCol string, props []model.PropertyFilter, orgID string) (string, []any) {
	var args []any
	inner := fmt.Sprintf("SELECT p.%s FROM %s p WHERE ", innerIDCol, table)
	if orgID != "" {
		inner += "p.org_id = ? AND "
		args = append(args, orgID)
	}

	pairs := make([]string, len(props))
	for i, prop := range props {
		pairs[i] = "(p.name = ? AND p.value = ?)"
		value := string(prop.Value)
		if value == "" {
			value = "null"
		}
		args = append(args, prop.Name, value)
	}
	inner += "(" + strings.Join(pairs, " OR ") + ")"
	inner += fmt.Sprintf(" GROUP BY p.%s HAVING COUNT(*) = %d", innerIDCol, len(props))

	return "id IN (" + inner + ")", args
}

// joinSets joins UPDATE SET fragments.
func joinSets(sets []string) string { return strings.Join(sets, ", ") }

// joinAnd joins WHERE fragments.
func joinAnd(clauses []string) string { return strings.Join(clauses, " AND ") }

// orderClause renders the ORDER BY for list queries, sorting by the given
// column with id as tiebreaker.
func orderClause(column string, page model.Page) string {
	dir := string(page.OrderOrDefault())
	return fmt.Sprintf(" ORDER BY %s %s, id %s", column, dir, dir)
}

// pageClause renders LIMIT/OFFSET. A zero limit means unbounded.
func pageClause(page model.Page) (string, []any) {
	if page.Limit <= 0 {
		return "", nil
	}
	if page.Offset > 0 {
		return " LIMIT ? OFFSET ?", []any{page.Limit, page.Offset}
	}
	return " LIMIT ?", []any{page.Limit}
}
