// Package sqlite disponibiliza o armazenamento durável dos bloqueios de IP.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wizarding-anonymous/cryo-sub006/internal/core/domain"
	"github.com/wizarding-anonymous/cryo-sub006/internal/core/ports"
)

type BlockStore struct {
	db *sql.DB
}

var _ ports.BlockStore = (*BlockStore)(nil)

func New(path string) (*BlockStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	store := &BlockStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *BlockStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS ip_blocks (
			id TEXT PRIMARY KEY,
			ip TEXT NOT NULL,
			reason TEXT NOT NULL,
			blocked_until DATETIME,
			blocked_by TEXT,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_ip_blocks_ip_active ON ip_blocks(ip, is_active);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *BlockStore) Close() error {
	return s.db.Close()
}

func (s *BlockStore) Create(ctx context.Context, record domain.IPBlockRecord) error {
	var blockedUntil sql.NullTime
	if record.BlockedUntil != nil {
		blockedUntil = sql.NullTime{Time: record.BlockedUntil.UTC(), Valid: true}
	}
	var blockedBy sql.NullString
	if record.BlockedBy != "" {
		blockedBy = sql.NullString{String: record.BlockedBy, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ip_blocks (id, ip, reason, blocked_until, blocked_by, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.IP, record.Reason, blockedUntil, blockedBy, record.IsActive, record.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert ip block: %w", err)
	}
	return nil
}

func (s *BlockStore) FindActive(ctx context.Context, ip string) (*domain.IPBlockRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ip, reason, blocked_until, blocked_by, is_active, created_at
		FROM ip_blocks
		WHERE ip = ? AND is_active = 1
		ORDER BY created_at DESC
		LIMIT 1
	`, ip)

	var record domain.IPBlockRecord
	var blockedUntil sql.NullTime
	var blockedBy sql.NullString

	err := row.Scan(&record.ID, &record.IP, &record.Reason, &blockedUntil, &blockedBy, &record.IsActive, &record.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query ip block: %w", err)
	}

	if blockedUntil.Valid {
		until := blockedUntil.Time
		record.BlockedUntil = &until
	}
	if blockedBy.Valid {
		record.BlockedBy = blockedBy.String
	}

	return &record, nil
}

func (s *BlockStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE ip_blocks SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate ip block: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate ip block: %w", err)
	}
	if affected == 0 {
		return domain.ErrBlockNotFound
	}
	return nil
}

// ActiveBlocks lista os bloqueios ativos, mais recentes primeiro. Uso
// administrativo; a checagem por requisição usa FindActive.
func (s *BlockStore) ActiveBlocks(ctx context.Context, limit int) ([]domain.IPBlockRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ip, reason, blocked_until, blocked_by, is_active, created_at
		FROM ip_blocks
		WHERE is_active = 1
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list ip blocks: %w", err)
	}
	defer rows.Close()

	var records []domain.IPBlockRecord
	for rows.Next() {
		var record domain.IPBlockRecord
		var blockedUntil sql.NullTime
		var blockedBy sql.NullString
		if err := rows.Scan(&record.ID, &record.IP, &record.Reason, &blockedUntil, &blockedBy, &record.IsActive, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ip block: %w", err)
		}
		if blockedUntil.Valid {
			until := blockedUntil.Time
			record.BlockedUntil = &until
		}
		if blockedBy.Valid {
			record.BlockedBy = blockedBy.String
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
