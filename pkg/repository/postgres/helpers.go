package postgres

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

// likePrefix turns a literal prefix into a LIKE pattern, escaping the LIKE
// metacharacters so a resource id containing % or _ matches literally.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

// propertyStore implements the per-parent property tables over one shared
// set of statements parameterized by table and parent column. The
// organization table's properties are keyed by org_id alone (parentCol
// empty); user and role properties carry both parent id and org_id.
type propertyStore struct {
	table     string
	parentCol string
}

// propertySQL builds the WHERE fragment and argument list addressing one
// parent. Placeholders start at $1.
func (ps propertyStore) parentWhere(orgID, parentID string) (string, []any) {
	if ps.parentCol == "" {
		return "org_id = $1", []any{orgID}
	}
	return fmt.Sprintf("%s = $1 AND org_id = $2", ps.parentCol), []any{parentID, orgID}
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
		"SELECT name, value, hidden, created_at FROM %s WHERE %s AND name = $%d",
		ps.table, where, len(args)+1,
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
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (org_id, name)
			DO UPDATE SET value = EXCLUDED.value, hidden = EXCLUDED.hidden, created_at = EXCLUDED.created_at
		`, ps.table)
		args = []any{orgID, prop.Name, value, prop.Hidden, now}
	} else {
		query = fmt.Sprintf(`
			INSERT INTO %s (%s, org_id, name, value, hidden, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (%s, org_id, name)
			DO UPDATE SET value = EXCLUDED.value, hidden = EXCLUDED.hidden, created_at = EXCLUDED.created_at
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
	query := fmt.Sprintf("DELETE FROM %s WHERE %s AND name = $%d", ps.table, where, len(args)+1)
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
// parent id column inside the property table. orgArg is the placeholder
// number already bound to the org id, or 0 for the globally visible
// organizations table. startIdx is the first free placeholder number; the
// clause consumes 2*len(props) placeholders.
func propertyMatchClause(table, innerIDCol string, props []model.PropertyFilter, orgArg int, startIdx int) (string, []any) {
	conds := make([]string, 0, len(props))
	args := make([]any, 0, 2*len(props))
	idx := startIdx
	for _, p := range props {
		conds = append(conds, fmt.Sprintf("(p.name = $%d AND p.value = $%d)", idx, idx+1))
		value := string(p.Value)
		if value == "" {
			value = "null"
		}
		args = append(args, p.Name, value)
		idx += 2
	}

	orgPredicate := ""
	if orgArg > 0 {
		orgPredicate = fmt.Sprintf("p.org_id = $%d AND ", orgArg)
	}

	clause := fmt.Sprintf(
		"id IN (SELECT p.%s FROM %s p WHERE %s(%s) GROUP BY p.%s HAVING COUNT(*) = %d)",
		innerIDCol, table, orgPredicate, strings.Join(conds, " OR "), innerIDCol, len(props),
	)
	return clause, args
}

// joinSets joins UPDATE SET fragments.
func joinSets(sets []string) string {
	return strings.Join(sets, ", ")
}

// joinAnd joins WHERE fragments.
func joinAnd(clauses []string) string {
	return strings.Join(clauses, " AND ")
}

// orderClause renders the deterministic list ordering.
func orderClause(column string, page model.Page) string {
	dir := string(page.OrderOrDefault())
	return fmt.Sprintf(" ORDER BY %s %s, id %s", column, dir, dir)
}

// pageClause renders LIMIT/OFFSET, consuming placeholders from startIdx.
func pageClause(page model.Page, startIdx int) (string, []any) {
	var clause string
	var args []any
	idx := startIdx
	if page.Limit > 0 {
		clause += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, page.Limit)
		idx++
	}
	if page.Offset > 0 {
		clause += fmt.Sprintf(" OFFSET $%d", idx)
		args = append(args, page.Offset)
	}
	return clause, args
}
