package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dukerupert/almanac/internal/calendar"
	"github.com/dukerupert/almanac/internal/model"
	"github.com/dukerupert/almanac/internal/store"
)

const historyRetention = 90 * 24 * time.Hour

// ErrDisabled is returned when no backup passphrase is configured.
var ErrDisabled = errors.New("backups are disabled: no passphrase configured")

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Manager writes and reads encrypted snapshot files.
type Manager struct {
	mu         sync.RWMutex
	passphrase string
	status     Status
	callback   StatusCallback
	settings   *store.SettingsStore
	history    *store.BackupStore
	logger     *slog.Logger
}

// NewManager creates a backup manager. settings, history and callback may
// be nil.
func NewManager(passphrase string, settings *store.SettingsStore, history *store.BackupStore, logger *slog.Logger, callback StatusCallback) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		passphrase: passphrase,
		settings:   settings,
		history:    history,
		callback:   callback,
		logger:     logger.With("component", "backup"),
		status:     Status{State: StateDisabled},
	}
	if passphrase != "" {
		m.status.State = StateIdle
	}
	if settings != nil {
		if v, err := settings.Get(store.LastBackupKey); err == nil && v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				m.status.LastBackup = &t
			}
		}
	}
	return m
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

// Backup encrypts snap into path and returns the number of bytes written.
func (m *Manager) Backup(path string, snap calendar.Snapshot) (int64, error) {
	status := m.Status()
	if status.State == StateDisabled {
		return 0, ErrDisabled
	}
	status.State = StateRunning
	status.InProgress = true
	status.Error = ""
	m.setStatus(status)

	var rec *model.Backup
	if m.history != nil {
		var err error
		if rec, err = m.history.Create(path); err != nil {
			m.logger.Warn("failed to record backup", "error", err)
		}
	}

	size, err := m.writeBackup(path, snap)
	if err != nil {
		if rec != nil {
			if ferr := m.history.Fail(rec.ID, err.Error()); ferr != nil {
				m.logger.Warn("failed to record backup failure", "error", ferr)
			}
		}
		status.State = StateError
		status.InProgress = false
		status.Error = err.Error()
		m.setStatus(status)
		return 0, err
	}

	now := time.Now().UTC()
	if rec != nil {
		if err := m.history.Complete(rec.ID, size, len(snap.Calendars)); err != nil {
			m.logger.Warn("failed to record backup completion", "error", err)
		}
		if n, err := m.history.DeleteOlderThan(now.Add(-historyRetention)); err != nil {
			m.logger.Warn("failed to prune backup history", "error", err)
		} else if n > 0 {
			m.logger.Debug("pruned backup history", "removed", n)
		}
	}
	if m.settings != nil {
		if err := m.settings.Set(store.LastBackupKey, now.Format(time.RFC3339)); err != nil {
			m.logger.Warn("failed to record backup time", "error", err)
		}
	}
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	m.logger.Info("backup written", "path", path, "bytes", size, "calendars", len(snap.Calendars))
	return size, nil
}

func (m *Manager) writeBackup(path string, snap calendar.Snapshot) (int64, error) {
	plaintext, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}
	data, err := Encrypt(plaintext, m.passphrase)
	if err != nil {
		return 0, err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".almanac-backup-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write backup: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("chmod backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close backup: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("rename backup: %w", err)
	}
	return int64(len(data)), nil
}

// History returns up to limit recent backups, newest first. It is empty
// without a history store.
func (m *Manager) History(limit int) ([]model.Backup, error) {
	if m.history == nil {
		return nil, nil
	}
	return m.history.List(limit)
}

// Restore decrypts the snapshot stored in path.
func (m *Manager) Restore(path string) (calendar.Snapshot, error) {
	if m.Status().State == StateDisabled {
		return calendar.Snapshot{}, ErrDisabled
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return calendar.Snapshot{}, fmt.Errorf("read backup: %w", err)
	}
	plaintext, err := Decrypt(data, m.passphrase)
	if err != nil {
		return calendar.Snapshot{}, err
	}

	var snap calendar.Snapshot
	if err := json.Unmarshal(plaintext, &snap); err != nil {
		return calendar.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	m.logger.Info("backup read", "path", path, "calendars", len(snap.Calendars))
	return snap, nil
}
