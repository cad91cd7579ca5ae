package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"torrank/internal/rulegroup"
	"torrank/internal/services"
)

const groupColumns = `name, rule_string, media_type, category`

// SaveGroup inserts or replaces a group. New groups are appended after the
// existing ones; updates keep their position.
func (s *Store) SaveGroup(ctx context.Context, group rulegroup.Group) error {
	group.Name = strings.TrimSpace(group.Name)
	group.RuleString = strings.TrimSpace(group.RuleString)
	if err := group.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "store", "save group", "", err)
	}
	now := timestamp()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO rule_groups (name, rule_string, media_type, category, position, created_at, updated_at)
         VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM rule_groups), ?, ?)
         ON CONFLICT(name) DO UPDATE SET
             rule_string = excluded.rule_string,
             media_type = excluded.media_type,
             category = excluded.category,
             updated_at = excluded.updated_at`,
		group.Name,
		group.RuleString,
		nullableString(group.MediaType),
		nullableString(group.Category),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("save group: %w", err)
	}
	return nil
}

// Group fetches a group by name. A missing group returns nil without error.
func (s *Store) Group(ctx context.Context, name string) (*rulegroup.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM rule_groups WHERE name = ?`, name)
	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &group, nil
}

// Groups returns every group in position order.
func (s *Store) Groups(ctx context.Context) ([]rulegroup.Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+groupColumns+` FROM rule_groups ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []rulegroup.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// DeleteGroup removes a group by name.
func (s *Store) DeleteGroup(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rule_groups WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "delete group", fmt.Sprintf("no group %q", name), nil)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (rulegroup.Group, error) {
	var (
		group     rulegroup.Group
		mediaType sql.NullString
		category  sql.NullString
	)
	if err := row.Scan(&group.Name, &group.RuleString, &mediaType, &category); err != nil {
		return rulegroup.Group{}, err
	}
	group.MediaType = mediaType.String
	group.Category = category.String
	return group, nil
}
