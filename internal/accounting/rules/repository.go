package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/invoices"
)

// Store provides persistence for the three rule families. ListActive returns
// rules ordered by ascending priority; the resolver depends on that ordering.
type Store interface {
	ListActive(ctx context.Context, family Family) ([]Rule, error)
	List(ctx context.Context, family Family) ([]Rule, error)
	Get(ctx context.Context, family Family, id int64) (Rule, error)
	Create(ctx context.Context, rule Rule) (Rule, error)
	Update(ctx context.Context, rule Rule) (Rule, error)
	Delete(ctx context.Context, family Family, id int64) error
}

// Each family keeps its own table so the persisted shapes stay distinct even
// though one matching implementation serves all three.
var familyTables = map[Family]struct {
	table     string
	targetCol string
}{
	FamilyAssignee: {table: "invoice_assignee_rules", targetCol: "target_user_id"},
	FamilyLocation: {table: "invoice_location_rules", targetCol: "target_location_id"},
	FamilyModule:   {table: "invoice_module_rules", targetCol: "target_module"},
}

// PGStore is the postgres backed rule store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

var _ Store = (*PGStore)(nil)

func (s *PGStore) selectQuery(family Family, where string) (string, error) {
	meta, ok := familyTables[family]
	if !ok {
		return "", ErrUnknownFamily
	}
	return fmt.Sprintf(`
		SELECT id, name, description, priority, include_keywords, exclude_keywords,
		       entity_id, location_id, direction, active, %s, created_at, updated_at
		FROM %s %s
		ORDER BY priority ASC, id ASC`, meta.targetCol, meta.table, where), nil
}

// ListActive returns active rules ordered by ascending priority.
func (s *PGStore) ListActive(ctx context.Context, family Family) ([]Rule, error) {
	query, err := s.selectQuery(family, "WHERE active")
	if err != nil {
		return nil, err
	}
	return s.queryRules(ctx, family, query)
}

// List returns all rules of one family ordered by ascending priority.
func (s *PGStore) List(ctx context.Context, family Family) ([]Rule, error) {
	query, err := s.selectQuery(family, "")
	if err != nil {
		return nil, err
	}
	return s.queryRules(ctx, family, query)
}

func (s *PGStore) queryRules(ctx context.Context, family Family, query string, args ...any) ([]Rule, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		rule, err := scanRule(rows, family)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// Get fetches a single rule.
func (s *PGStore) Get(ctx context.Context, family Family, id int64) (Rule, error) {
	meta, ok := familyTables[family]
	if !ok {
		return Rule{}, ErrUnknownFamily
	}
	query := fmt.Sprintf(`
		SELECT id, name, description, priority, include_keywords, exclude_keywords,
		       entity_id, location_id, direction, active, %s, created_at, updated_at
		FROM %s WHERE id = $1`, meta.targetCol, meta.table)
	row := s.pool.QueryRow(ctx, query, id)
	rule, err := scanRule(row, family)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, ErrNotFound
	}
	return rule, err
}

// Create inserts the rule and returns it with its generated id.
func (s *PGStore) Create(ctx context.Context, rule Rule) (Rule, error) {
	meta, ok := familyTables[rule.Family]
	if !ok {
		return Rule{}, ErrUnknownFamily
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (name, description, priority, include_keywords, exclude_keywords,
		                entity_id, location_id, direction, active, %s, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at`, meta.table, meta.targetCol)
	err := s.pool.QueryRow(ctx, query,
		rule.Name, rule.Description, rule.Priority, rule.IncludeKeywords, rule.ExcludeKeywords,
		rule.EntityID, rule.LocationID, directionText(rule.Direction), rule.Active, targetValue(rule),
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// Update rewrites the rule in place.
func (s *PGStore) Update(ctx context.Context, rule Rule) (Rule, error) {
	meta, ok := familyTables[rule.Family]
	if !ok {
		return Rule{}, ErrUnknownFamily
	}
	query := fmt.Sprintf(`
		UPDATE %s SET name = $2, description = $3, priority = $4, include_keywords = $5,
		       exclude_keywords = $6, entity_id = $7, location_id = $8, direction = $9,
		       active = $10, %s = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`, meta.table, meta.targetCol)
	err := s.pool.QueryRow(ctx, query,
		rule.ID, rule.Name, rule.Description, rule.Priority, rule.IncludeKeywords, rule.ExcludeKeywords,
		rule.EntityID, rule.LocationID, directionText(rule.Direction), rule.Active, targetValue(rule),
	).Scan(&rule.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rule{}, ErrNotFound
	}
	if err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// Delete removes the rule.
func (s *PGStore) Delete(ctx context.Context, family Family, id int64) error {
	meta, ok := familyTables[family]
	if !ok {
		return ErrUnknownFamily
	}
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", meta.table), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func targetValue(rule Rule) any {
	switch rule.Family {
	case FamilyAssignee:
		return rule.TargetUserID
	case FamilyLocation:
		return rule.TargetLocationID
	case FamilyModule:
		if rule.TargetModule == nil {
			return nil
		}
		return string(*rule.TargetModule)
	}
	return nil
}

func directionText(d *invoices.Direction) *string {
	if d == nil {
		return nil
	}
	s := string(*d)
	return &s
}

func scanRule(row pgx.Row, family Family) (Rule, error) {
	var rule Rule
	rule.Family = family
	var direction *string
	var target any
	switch family {
	case FamilyModule:
		target = new(*string)
	default:
		target = new(*int64)
	}
	if err := row.Scan(
		&rule.ID, &rule.Name, &rule.Description, &rule.Priority,
		&rule.IncludeKeywords, &rule.ExcludeKeywords,
		&rule.EntityID, &rule.LocationID, &direction, &rule.Active,
		target, &rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return Rule{}, err
	}
	if direction != nil {
		d := invoices.Direction(*direction)
		rule.Direction = &d
	}
	switch family {
	case FamilyAssignee:
		rule.TargetUserID = *(target.(**int64))
	case FamilyLocation:
		rule.TargetLocationID = *(target.(**int64))
	case FamilyModule:
		if raw := *(target.(**string)); raw != nil {
			m := invoices.ModuleType(*raw)
			rule.TargetModule = &m
		}
	}
	return rule, nil
}
