package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/almanac/internal/model"
)

// BackupStore keeps the history of written backups.
type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

// Create records a backup that has started.
func (s *BackupStore) Create(path string) (*model.Backup, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO backups (path, status, created_at) VALUES (?, ?, ?)`,
		path, model.BackupStatusRunning, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	id, _ := result.LastInsertId()
	return &model.Backup{
		ID:        id,
		Path:      path,
		Status:    model.BackupStatusRunning,
		CreatedAt: now,
	}, nil
}

func (s *BackupStore) GetByID(id int64) (*model.Backup, error) {
	row := s.db.QueryRow(
		`SELECT id, path, size_bytes, calendars, status, error_message, created_at, completed_at
		 FROM backups WHERE id = ?`, id,
	)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %d: %w", id, err)
	}
	return b, nil
}

// List returns the most recent backups first.
func (s *BackupStore) List(limit int) ([]model.Backup, error) {
	rows, err := s.db.Query(
		`SELECT id, path, size_bytes, calendars, status, error_message, created_at, completed_at
		 FROM backups ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

func (s *BackupStore) Complete(id, sizeBytes int64, calendars int) error {
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, size_bytes = ?, calendars = ?, error_message = NULL, completed_at = ? WHERE id = ?`,
		model.BackupStatusCompleted, sizeBytes, calendars, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("complete backup %d: %w", id, err)
	}
	return nil
}

func (s *BackupStore) Fail(id int64, errorMsg string) error {
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		model.BackupStatusFailed, errorMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("fail backup %d: %w", id, err)
	}
	return nil
}

// DeleteOlderThan removes history entries created before cutoff.
func (s *BackupStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM backups WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old backups: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBackup(row scanner) (*model.Backup, error) {
	var (
		b           model.Backup
		errMsg      sql.NullString
		completedAt sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.Path, &b.SizeBytes, &b.Calendars, &b.Status, &errMsg, &b.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	b.ErrorMessage = errMsg.String
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	return &b, nil
}
