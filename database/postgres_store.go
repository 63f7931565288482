package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS gateway_credentials (
	storage_key TEXT PRIMARY KEY,
	jid         TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore memakai satu container whatsmeow untuk semua device, plus
// tabel gateway_credentials yang memetakan storage key ke JID device.
type PostgresStore struct {
	db        *sql.DB
	container *sqlstore.Container
	log       zerolog.Logger
}

func NewPostgresStore(ctx context.Context, url string, log zerolog.Logger) (*PostgresStore, error) {
	log = log.With().Str("component", "credential-store").Str("backend", "postgres").Logger()

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	container := sqlstore.NewWithDB(db, "postgres", waLog.Zerolog(log))
	if err := container.Upgrade(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("upgrade whatsmeow schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, ledgerSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create credential ledger: %w", err)
	}

	log.Info().Msg("credential store connected")
	return &PostgresStore{db: db, container: container, log: log}, nil
}

func (s *PostgresStore) lookup(ctx context.Context, key string) (jid string, found bool, err error) {
	var v sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT jid FROM gateway_credentials WHERE storage_key = $1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v.String, true, nil
}

func (s *PostgresStore) device(ctx context.Context, jid string) (*store.Device, error) {
	if jid == "" {
		return nil, nil
	}
	parsed, err := types.ParseJID(jid)
	if err != nil {
		return nil, fmt.Errorf("parse stored jid %q: %w", jid, err)
	}
	return s.container.GetDevice(ctx, parsed)
}

// Device mengembalikan device yang sudah terikat ke key. Key baru dicatat
// tanpa JID supaya tetap ikut di-restore walau QR belum di-scan.
func (s *PostgresStore) Device(ctx context.Context, key string) (*store.Device, error) {
	jid, found, err := s.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO gateway_credentials (storage_key) VALUES ($1) ON CONFLICT (storage_key) DO NOTHING`, key); err != nil {
			return nil, fmt.Errorf("record key %s: %w", key, err)
		}
	}

	dev, err := s.device(ctx, jid)
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return s.container.NewDevice(), nil
	}
	return dev, nil
}

func (s *PostgresStore) Bind(ctx context.Context, key string, device *store.Device) error {
	if device == nil || device.ID == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gateway_credentials (storage_key, jid) VALUES ($1, $2)
		ON CONFLICT (storage_key) DO UPDATE SET jid = EXCLUDED.jid`,
		key, device.ID.String())
	if err != nil {
		return fmt.Errorf("bind %s: %w", key, err)
	}
	s.log.Info().Str("storage_key", key).Str("jid", device.ID.String()).Msg("credentials bound")
	return nil
}

func (s *PostgresStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT storage_key FROM gateway_credentials ORDER BY storage_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := s.lookup(ctx, key)
	return found, err
}

// Erase menghapus device whatsmeow (kalau masih ada) lalu baris ledger.
func (s *PostgresStore) Erase(ctx context.Context, key string) error {
	jid, found, err := s.lookup(ctx, key)
	if err != nil || !found {
		return err
	}

	dev, err := s.device(ctx, jid)
	if err != nil {
		return err
	}
	if dev != nil {
		if err := s.container.DeleteDevice(ctx, dev); err != nil {
			return fmt.Errorf("delete device %s: %w", jid, err)
		}
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM gateway_credentials WHERE storage_key = $1`, key)
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
