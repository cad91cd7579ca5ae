package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"torrank/internal/customrule"
	"torrank/internal/services"
	"torrank/internal/torrent"
)

const customRuleColumns = `id, name, include_pattern, exclude_pattern, size_range, seeders, publish_time`

// SaveCustomRule validates and upserts a custom rule. A rule without an ID is
// assigned a generated one; the stored ID is always the canonical token.
// created reports whether the ID was new. Updates keep created_at, and with
// it the rule's place in CustomRules.
func (s *Store) SaveCustomRule(ctx context.Context, rule customrule.Rule) (saved customrule.Rule, created bool, err error) {
	if strings.TrimSpace(rule.ID) == "" {
		rule.ID = customrule.NewID()
	}
	rule.ID = torrent.NormalizeToken(rule.ID)
	if _, err := rule.Compile(); err != nil {
		return customrule.Rule{}, false, fmt.Errorf("save custom rule: %w", err)
	}
	now := timestamp()
	var createdAt string
	err = s.db.QueryRowContext(
		ctx,
		`INSERT INTO custom_rules (`+customRuleColumns+`, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             name = excluded.name,
             include_pattern = excluded.include_pattern,
             exclude_pattern = excluded.exclude_pattern,
             size_range = excluded.size_range,
             seeders = excluded.seeders,
             publish_time = excluded.publish_time,
             updated_at = excluded.updated_at
         RETURNING created_at`,
		rule.ID,
		nullableString(rule.Name),
		nullableString(rule.Include),
		nullableString(rule.Exclude),
		nullableString(rule.SizeRange),
		nullableString(rule.Seeders),
		nullableString(rule.PublishTime),
		now,
		now,
	).Scan(&createdAt)
	if err != nil {
		return customrule.Rule{}, false, fmt.Errorf("save custom rule: %w", err)
	}
	return rule, createdAt == now, nil
}

// CustomRules returns every stored custom rule in creation order.
func (s *Store) CustomRules(ctx context.Context) ([]customrule.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customRuleColumns+` FROM custom_rules ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list custom rules: %w", err)
	}
	defer rows.Close()

	var out []customrule.Rule
	for rows.Next() {
		var (
			rule                                                   customrule.Rule
			name, include, exclude, sizeRange, seeders, publishing sql.NullString
		)
		if err := rows.Scan(&rule.ID, &name, &include, &exclude, &sizeRange, &seeders, &publishing); err != nil {
			return nil, fmt.Errorf("scan custom rule: %w", err)
		}
		rule.Name = name.String
		rule.Include = include.String
		rule.Exclude = exclude.String
		rule.SizeRange = sizeRange.String
		rule.Seeders = seeders.String
		rule.PublishTime = publishing.String
		out = append(out, rule)
	}
	return out, rows.Err()
}

// RemoveCustomRule deletes a custom rule and then runs verify, typically a
// rebuild of every rule that might reference the token. When verify fails the
// row is put back unchanged, timestamps included, and the failure is returned
// as a validation error.
func (s *Store) RemoveCustomRule(ctx context.Context, id string, verify func(context.Context) error) error {
	id = torrent.NormalizeToken(id)
	var (
		rule                                                   customrule.Rule
		name, include, exclude, sizeRange, seeders, publishing sql.NullString
		createdAt, updatedAt                                   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT `+customRuleColumns+`, created_at, updated_at FROM custom_rules WHERE id = ?`, id,
	).Scan(&rule.ID, &name, &include, &exclude, &sizeRange, &seeders, &publishing, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return services.Wrap(services.ErrNotFound, "store", "remove custom rule", fmt.Sprintf("no custom rule %q", id), nil)
	}
	if err != nil {
		return fmt.Errorf("remove custom rule: %w", err)
	}
	if err := s.DeleteCustomRule(ctx, id); err != nil {
		return err
	}
	if verify == nil {
		return nil
	}
	verifyErr := verify(ctx)
	if verifyErr == nil {
		return nil
	}
	_, restoreErr := s.db.ExecContext(ctx,
		`INSERT INTO custom_rules (`+customRuleColumns+`, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, name, include, exclude, sizeRange, seeders, publishing, createdAt, updatedAt,
	)
	if restoreErr != nil {
		verifyErr = errors.Join(verifyErr, fmt.Errorf("restore custom rule: %w", restoreErr))
	}
	return services.Wrap(services.ErrValidation, "store", "remove custom rule", fmt.Sprintf("custom rule %q is still referenced", id), verifyErr)
}

// DeleteCustomRule removes a custom rule by ID. Rules still referenced by a
// group or the default rule make the next reload fail, so callers should
// check references first.
func (s *Store) DeleteCustomRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM custom_rules WHERE id = ?`, torrent.NormalizeToken(id))
	if err != nil {
		return fmt.Errorf("delete custom rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete custom rule: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "delete custom rule", fmt.Sprintf("no custom rule %q", id), nil)
	}
	return nil
}
