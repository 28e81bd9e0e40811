package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/tcgruenwald/platzbuch/internal/db"
)

// Rule is one raw rulebook row, as shown on the admin screen.
type Rule struct {
	Key         string    `json:"rule_key"`
	Value       string    `json:"rule_value"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store reads and writes the booking_rules table.
type Store struct {
	db db.DBTX
}

func NewStore(dbtx db.DBTX) *Store {
	return &Store{db: dbtx}
}

// GetAll returns the raw key/value mapping.
func (s *Store) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rule_key, rule_value FROM booking_rules`)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		values[key] = value
	}
	return values, rows.Err()
}

// List returns all rule rows with descriptions for the admin screen.
func (s *Store) List(ctx context.Context) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_key, rule_value, COALESCE(description, ''), updated_at
		FROM booking_rules ORDER BY rule_key`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var result []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.Key, &r.Value, &r.Description, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Load fetches and parses the full rulebook.
func (s *Store) Load(ctx context.Context) (Ruleset, error) {
	values, err := s.GetAll(ctx)
	if err != nil {
		return Ruleset{}, err
	}
	return Parse(values)
}

// Set validates and writes one rule value. The new value is also parsed
// against the rest of the rulebook, so a write that would make the combined
// ruleset contradictory (half-booking min above max, inverted core time) is
// rejected here instead of breaking every later Load.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ValidateValue(key, value); err != nil {
		return err
	}
	values, err := s.GetAll(ctx)
	if err != nil {
		return err
	}
	values[key] = value
	if _, err := Parse(values); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO booking_rules (rule_key, rule_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (rule_key) DO UPDATE SET
			rule_value = excluded.rule_value,
			updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set rule %s: %w", key, err)
	}
	return nil
}
