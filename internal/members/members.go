// Package members holds the club roster. The (vorname, nachname,
// geburtsjahr) triple is the sole identity mechanism for end users.
package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tcgruenwald/platzbuch/internal/db"
)

var ErrNotFound = errors.New("member not found")

type Member struct {
	ID          string    `json:"id"`
	Vorname     string    `json:"vorname"`
	Nachname    string    `json:"nachname"`
	Geburtsjahr int       `json:"geburtsjahr"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Store struct {
	db db.DBTX
}

func NewStore(dbtx db.DBTX) *Store {
	return &Store{db: dbtx}
}

// Verify checks an identity claim against the roster: case-insensitive on
// names, exact on birth year.
func (s *Store) Verify(ctx context.Context, vorname, nachname string, geburtsjahr int) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM members
		WHERE LOWER(vorname) = LOWER(?)
		  AND LOWER(nachname) = LOWER(?)
		  AND geburtsjahr = ?`,
		strings.TrimSpace(vorname), strings.TrimSpace(nachname), geburtsjahr,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("verify member: %w", err)
	}
	return count > 0, nil
}

// FindEmail returns the roster email for an identity, or "" when the member
// has none on file.
func (s *Store) FindEmail(ctx context.Context, vorname, nachname string, geburtsjahr int) (string, error) {
	var email sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT email FROM members
		WHERE LOWER(vorname) = LOWER(?)
		  AND LOWER(nachname) = LOWER(?)
		  AND geburtsjahr = ?
		LIMIT 1`,
		strings.TrimSpace(vorname), strings.TrimSpace(nachname), geburtsjahr,
	).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find member email: %w", err)
	}
	return email.String, nil
}

func (s *Store) Create(ctx context.Context, m *Member) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, vorname, nachname, geburtsjahr, email, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, strings.TrimSpace(m.Vorname), strings.TrimSpace(m.Nachname),
		m.Geburtsjahr, nullString(m.Email), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vorname, nachname, geburtsjahr, email, created_at
		FROM members ORDER BY nachname, vorname`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var result []Member
	for rows.Next() {
		var m Member
		var email sql.NullString
		if err := rows.Scan(&m.ID, &m.Vorname, &m.Nachname, &m.Geburtsjahr, &email, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Email = email.String
		result = append(result, m)
	}
	return result, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
