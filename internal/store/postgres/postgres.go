// Package postgres stores user and capsule documents as JSONB rows. Every
// mutation is a version-checked read-modify-write (compare-and-swap with a
// bounded retry count), which closes the lost-update window on embedded
// arrays such as a user's friends list. Snapshot subscriptions are
// implemented by polling the version column.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"

	"github.com/siminyang/aboutxtime/internal/model"
	"github.com/siminyang/aboutxtime/internal/store"
)

const (
	casRetries        = 3
	watchPollInterval = 2 * time.Second
	watchBuffer       = 16
)

const ddl = `
CREATE TABLE IF NOT EXISTS users (
    user_id    TEXT PRIMARY KEY,
    doc        JSONB NOT NULL,
    version    BIGINT NOT NULL DEFAULT 1,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS capsules (
    capsule_id TEXT PRIMARY KEY,
    doc        JSONB NOT NULL,
    version    BIGINT NOT NULL DEFAULT 1,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS capsules_recipients_idx ON capsules USING gin ((doc->'recipients'));
`

// Open opens a PostgreSQL connection using the pgx stdlib driver and
// verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Bootstrap applies the schema. Safe to run on every startup.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, ddl)
	return err
}

// NewWithDB constructs a Postgres-backed store.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users       { return &users{db: s.db} }
func (s *pgStore) Capsules() store.Capsules { return &capsules{db: s.db} }

// HealthPing implements store.HealthPinger.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func encode(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Upsert(ctx context.Context, in *model.User) (*model.User, error) {
	if in.ID == "" {
		return nil, fmt.Errorf("user id required: %w", model.ErrValidation)
	}
	for i := 0; i < casRetries; i++ {
		var doc []byte
		var version int64
		err := u.db.QueryRowContext(ctx,
			`SELECT doc, version FROM users WHERE user_id=$1`, in.ID).Scan(&doc, &version)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := u.db.ExecContext(ctx,
				`INSERT INTO users (user_id, doc) VALUES ($1,$2) ON CONFLICT (user_id) DO NOTHING`,
				in.ID, encode(in))
			if err != nil {
				return nil, err
			}
			if n, _ := res.RowsAffected(); n == 1 {
				return in, nil
			}
			// Lost the insert race; retry as a merge.
			continue
		case err != nil:
			return nil, err
		}
		cur, err := model.DecodeUser(doc)
		if err != nil {
			return nil, err
		}
		cur.Merge(in)
		ok, err := u.casWrite(ctx, in.ID, cur, version)
		if err != nil {
			return nil, err
		}
		if ok {
			return cur, nil
		}
	}
	return nil, fmt.Errorf("upsert user %s: %w", in.ID, model.ErrConflict)
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	var doc []byte
	err := u.db.QueryRowContext(ctx,
		`SELECT doc FROM users WHERE user_id=$1`, userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return model.DecodeUser(doc)
}

func (u *users) Exists(ctx context.Context, userID string) (bool, error) {
	var one int
	err := u.db.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE user_id=$1`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (u *users) casWrite(ctx context.Context, userID string, doc *model.User, version int64) (bool, error) {
	res, err := u.db.ExecContext(ctx,
		`UPDATE users SET doc=$1, version=version+1, updated_at=now() WHERE user_id=$2 AND version=$3`,
		encode(doc), userID, version)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (u *users) mutate(ctx context.Context, userID string, fn func(*model.User)) error {
	for i := 0; i < casRetries; i++ {
		var doc []byte
		var version int64
		err := u.db.QueryRowContext(ctx,
			`SELECT doc, version FROM users WHERE user_id=$1`, userID).Scan(&doc, &version)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
		}
		if err != nil {
			return err
		}
		cur, err := model.DecodeUser(doc)
		if err != nil {
			return err
		}
		fn(cur)
		ok, err := u.casWrite(ctx, userID, cur, version)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("update user %s: %w", userID, model.ErrConflict)
}

func (u *users) AppendCapsuleRef(ctx context.Context, userID string, field store.ListField, capsuleID string) error {
	return u.mutate(ctx, userID, func(cur *model.User) {
		switch field {
		case store.FieldCreated:
			cur.CreatedCapsulesIds = model.AppendUnique(cur.CreatedCapsulesIds, capsuleID)
		case store.FieldReceived:
			cur.ReceivedCapsulesIds = model.AppendUnique(cur.ReceivedCapsulesIds, capsuleID)
		case store.FieldShared:
			cur.SharedCapsulesIds = model.AppendUnique(cur.SharedCapsulesIds, capsuleID)
		}
	})
}

func (u *users) UpsertFriend(ctx context.Context, userID string, f model.Friend) error {
	return u.mutate(ctx, userID, func(cur *model.User) { cur.UpsertFriend(f) })
}

func (u *users) RemoveFriend(ctx context.Context, userID, friendID string) error {
	return u.mutate(ctx, userID, func(cur *model.User) { cur.RemoveFriend(friendID) })
}

// --- Capsules ---

type capsules struct{ db *sql.DB }

func (c *capsules) Create(ctx context.Context, creatorID string) (*model.Capsule, error) {
	if creatorID == "" {
		return nil, fmt.Errorf("creator id required: %w", model.ErrValidation)
	}
	shell := &model.Capsule{
		CapsuleID:   uuid.New().String(),
		CreatorID:   creatorID,
		Recipients:  map[string]model.Recipient{},
		Content:     map[string]model.Content{},
		CreatedDate: time.Now().UTC(),
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO capsules (capsule_id, doc) VALUES ($1,$2)`,
		shell.CapsuleID, encode(shell))
	if err != nil {
		return nil, err
	}
	return shell, nil
}

func (c *capsules) Get(ctx context.Context, capsuleID string) (*model.Capsule, error) {
	var doc []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT doc FROM capsules WHERE capsule_id=$1`, capsuleID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("capsule %s: %w", capsuleID, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return model.DecodeCapsule(doc)
}

func (c *capsules) Exists(ctx context.Context, capsuleID string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx,
		`SELECT 1 FROM capsules WHERE capsule_id=$1`, capsuleID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *capsules) ListByRecipient(ctx context.Context, userID string) ([]*model.Capsule, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT doc FROM capsules WHERE doc->'recipients' ? $1`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*model.Capsule
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		cap, err := model.DecodeCapsule(doc)
		if err != nil {
			// Fail closed per document: drop and log, never default.
			log.Warn().Err(err).Msg("dropping undecodable capsule document")
			continue
		}
		out = append(out, cap)
	}
	return out, rows.Err()
}

func (c *capsules) mutate(ctx context.Context, capsuleID string, fn func(*model.Capsule)) error {
	for i := 0; i < casRetries; i++ {
		var doc []byte
		var version int64
		err := c.db.QueryRowContext(ctx,
			`SELECT doc, version FROM capsules WHERE capsule_id=$1`, capsuleID).Scan(&doc, &version)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("capsule %s: %w", capsuleID, model.ErrNotFound)
		}
		if err != nil {
			return err
		}
		cur, err := model.DecodeCapsule(doc)
		if err != nil {
			return err
		}
		fn(cur)
		res, err := c.db.ExecContext(ctx,
			`UPDATE capsules SET doc=$1, version=version+1, updated_at=now() WHERE capsule_id=$2 AND version=$3`,
			encode(cur), capsuleID, version)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}
	}
	return fmt.Errorf("update capsule %s: %w", capsuleID, model.ErrConflict)
}

func (c *capsules) ApplyUpdate(ctx context.Context, capsuleID string, upd model.CapsuleUpdate) error {
	return c.mutate(ctx, capsuleID, func(cur *model.Capsule) { cur.ApplyUpdate(upd, time.Now().UTC()) })
}

func (c *capsules) SetRecipientStatus(ctx context.Context, capsuleID, userID string, status model.RecipientStatus) error {
	return c.mutate(ctx, capsuleID, func(cur *model.Capsule) {
		if cur.Recipients == nil {
			cur.Recipients = map[string]model.Recipient{}
		}
		cur.Recipients[userID] = model.Recipient{Status: status}
	})
}

func (c *capsules) AppendReply(ctx context.Context, capsuleID string, r model.ReplyMessage) error {
	return c.mutate(ctx, capsuleID, func(cur *model.Capsule) {
		cur.ReplyMessages = append(cur.ReplyMessages, r)
	})
}

func (c *capsules) Delete(ctx context.Context, capsuleID string) error {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM capsules WHERE capsule_id=$1`, capsuleID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("capsule %s: %w", capsuleID, model.ErrNotFound)
	}
	return nil
}

func (c *capsules) Watch(ctx context.Context, capsuleID string) (*store.CapsuleSubscription, error) {
	ok, err := c.Exists(ctx, capsuleID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("capsule %s: %w", capsuleID, model.ErrNotFound)
	}

	wctx, cancel := context.WithCancel(ctx)
	ch := make(chan *model.Capsule, watchBuffer)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(watchPollInterval)
		defer ticker.Stop()
		var last int64
		for {
			select {
			case <-wctx.Done():
				return
			case <-ticker.C:
			}
			var doc []byte
			var version int64
			err := c.db.QueryRowContext(wctx,
				`SELECT doc, version FROM capsules WHERE capsule_id=$1`, capsuleID).Scan(&doc, &version)
			if errors.Is(err, sql.ErrNoRows) {
				return
			}
			if err != nil {
				log.Error().Err(err).Str("capsule_id", capsuleID).Msg("capsule watch poll failed")
				continue
			}
			if version == last {
				continue
			}
			last = version
			cap, err := model.DecodeCapsule(doc)
			if err != nil {
				log.Warn().Err(err).Str("capsule_id", capsuleID).Msg("dropping undecodable capsule document")
				continue
			}
			select {
			case ch <- cap:
			default:
			}
		}
	}()
	return store.NewCapsuleSubscription(ch, cancel), nil
}

func (c *capsules) WatchRecipient(ctx context.Context, userID string) (*store.RecipientSubscription, error) {
	wctx, cancel := context.WithCancel(ctx)
	ch := make(chan []*model.Capsule, watchBuffer)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(watchPollInterval)
		defer ticker.Stop()
		last := int64(-1)
		for {
			var fp int64
			err := c.db.QueryRowContext(wctx,
				`SELECT coalesce(sum(version),0) + count(*) FROM capsules WHERE doc->'recipients' ? $1`,
				userID).Scan(&fp)
			if err != nil {
				if wctx.Err() != nil {
					return
				}
				log.Error().Err(err).Str("user_id", userID).Msg("recipient watch poll failed")
			} else if fp != last {
				last = fp
				list, err := c.ListByRecipient(wctx, userID)
				if err == nil {
					select {
					case ch <- list:
					default:
					}
				}
			}
			select {
			case <-wctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return store.NewRecipientSubscription(ch, cancel), nil
}
