package store

import (
	"context"
	"database/sql"
	"fmt"

	"certreg/internal/issuer/models"
	"certreg/pkg/domain"
	"certreg/pkg/platform/sentinel"
)

// PostgresStore persists the allow-list in the issuer_allowlist table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(ctx context.Context, entry *models.Entry) error {
	if entry == nil {
		return fmt.Errorf("allowlist entry is required")
	}
	query := `
		INSERT INTO issuer_allowlist (principal, reason, created_by, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (principal) DO UPDATE SET
			reason = EXCLUDED.reason,
			created_by = EXCLUDED.created_by
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.Principal.String(),
		entry.Reason,
		entry.CreatedBy.String(),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add allowlist entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, principal domain.Principal) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM issuer_allowlist WHERE principal = $1`, principal.String())
	if err != nil {
		return fmt.Errorf("remove allowlist entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove allowlist entry: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Contains(ctx context.Context, principal domain.Principal) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM issuer_allowlist WHERE principal = $1)`,
		principal.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check allowlist: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT principal, reason, created_by, created_at
		FROM issuer_allowlist
		ORDER BY principal
	`)
	if err != nil {
		return nil, fmt.Errorf("list allowlist entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		var principal, createdBy string
		entry := &models.Entry{}
		if err := rows.Scan(&principal, &entry.Reason, &createdBy, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan allowlist entry: %w", err)
		}
		entry.Principal = domain.Principal(principal)
		entry.CreatedBy = domain.Principal(createdBy)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list allowlist entries: %w", err)
	}
	return entries, nil
}
