package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gowa-gateway/internal/service"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
)

const sqliteExt = ".db"

// ErrInvalidKey membungkus service.ErrValidation supaya SessionManager tidak
// mencoba reconnect untuk key yang tidak akan pernah diterima.
var ErrInvalidKey = fmt.Errorf("%w: invalid storage key", service.ErrValidation)

type sqliteUnit struct {
	db        *sql.DB
	container *sqlstore.Container
}

// SQLiteStore menyimpan kredensial tiap session di file SQLite sendiri
// (<dir>/<key>.db), mirip folder auth per session.
type SQLiteStore struct {
	dir string
	log zerolog.Logger

	mu    sync.Mutex
	units map[string]*sqliteUnit
}

func NewSQLiteStore(dir string, log zerolog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &SQLiteStore{
		dir:   dir,
		log:   log.With().Str("component", "credential-store").Str("backend", "sqlite").Logger(),
		units: make(map[string]*sqliteUnit),
	}, nil
}

func (s *SQLiteStore) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key+sqliteExt), nil
}

func (s *SQLiteStore) unit(ctx context.Context, key string) (*sqliteUnit, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.units[key]; ok {
		return u, nil
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	container := sqlstore.NewWithDB(db, "sqlite3", waLog.Zerolog(s.log.With().Str("storage_key", key).Logger()))
	if err := container.Upgrade(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("upgrade %s: %w", path, err)
	}

	u := &sqliteUnit{db: db, container: container}
	s.units[key] = u
	return u, nil
}

// Device mengembalikan device tersimpan, atau device baru kalau belum pairing.
func (s *SQLiteStore) Device(ctx context.Context, key string) (*store.Device, error) {
	u, err := s.unit(ctx, key)
	if err != nil {
		return nil, err
	}
	return u.container.GetFirstDevice(ctx)
}

// Bind menyimpan ulang device setelah pairing. File sudah menjadi identitas
// session, jadi tidak ada mapping tambahan.
func (s *SQLiteStore) Bind(ctx context.Context, key string, device *store.Device) error {
	if device == nil || device.ID == nil {
		return nil
	}
	return device.Save(ctx)
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+sqliteExt))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		keys = append(keys, strings.TrimSuffix(filepath.Base(m), sqliteExt))
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Erase menutup koneksi DB lalu menghapus file beserta -wal/-shm.
func (s *SQLiteStore) Erase(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if u, ok := s.units[key]; ok {
		delete(s.units, key)
		if err := u.db.Close(); err != nil {
			s.log.Warn().Err(err).Str("storage_key", key).Msg("failed to close credential db")
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for key, u := range s.units {
		errs = append(errs, u.db.Close())
		delete(s.units, key)
	}
	return errors.Join(errs...)
}
