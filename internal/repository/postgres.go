package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/atinyakov/totpkeeper/internal/models"
)

// PostgresRepository stores records in the totp_secrets table. A one-row
// store_meta table carries the version used for compare-and-swap saves.
type PostgresRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
	// version is the store version seen by the last Load or Save.
	version int64
}

// NewPostgresRepository creates a PostgresRepository over db.
// db must be a valid connection to a PostgreSQL instance with the schema from db.InitPostgres.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{DB: db}
}

// Load fetches every record and remembers the store version.
func (r *PostgresRepository) Load(ctx context.Context) (map[string]models.SecretRecord, error) {
	var version int64
	err := r.DB.QueryRowContext(ctx, `SELECT version FROM store_meta WHERE id = 1`).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load version: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, email, secret, created_at, updated_at FROM totp_secrets ORDER BY email
	`)
	if err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}
	defer rows.Close()

	records := make(map[string]models.SecretRecord)
	for rows.Next() {
		var rec models.SecretRecord
		if err := rows.Scan(&rec.ID, &rec.Identity, &rec.Secret, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		records[rec.Identity] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	r.version = version
	return records, nil
}

// Save replaces all rows in one transaction after bumping the store version.
// It fails with ErrConflict when another writer bumped it first.
func (r *PostgresRepository) Save(ctx context.Context, records map[string]models.SecretRecord) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE store_meta SET version = version + 1 WHERE id = 1 AND version = $1`, r.version)
	if err != nil {
		return fmt.Errorf("bump version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump version: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: version %d is stale", ErrConflict, r.version)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM totp_secrets`); err != nil {
		return fmt.Errorf("clear secrets: %w", err)
	}

	secrets := make([]models.SecretRecord, 0, len(records))
	for _, rec := range records {
		secrets = append(secrets, rec)
	}
	slices.SortFunc(secrets, func(a, b models.SecretRecord) int {
		return strings.Compare(a.Identity, b.Identity)
	})
	for _, rec := range secrets {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO totp_secrets (id, email, secret, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		`, rec.ID, rec.Identity, rec.Secret, rec.CreatedAt, rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert %s: %w", rec.Identity, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.version++
	return nil
}
