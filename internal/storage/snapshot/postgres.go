package snapshot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zhouzirui/z-board/backend/internal/model/message"
)

const BackendPostgres = "postgres"

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// PostgresStore keeps snapshots as JSONB rows in <schema>.snapshots.
//
// The pool is closed by Close only when the store created it (OpenPostgres);
// a pool handed to NewPostgresStore stays owned by the caller.
type PostgresStore struct {
	pool     *pgxpool.Pool
	schema   string
	ownsPool bool
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the schema holding the snapshots table (default "board").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("snapshot: empty schema")
		}
		if !pgIdentRE.MatchString(schema) {
			return fmt.Errorf("snapshot: invalid schema identifier %q", schema)
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "board"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("snapshot: nil pool")
	}
	return st, nil
}

// OpenPostgres connects to dsn, creates the schema if needed and returns a
// store that owns its pool.
func OpenPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("snapshot: postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("snapshot: connect postgres: %w", err)
	}
	st, err := NewPostgresStore(pool, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	st.ownsPool = true
	if err := st.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return st, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "snapshots"}.Sanitize()
}

// EnsureSchema creates the schema and snapshots table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %s;
CREATE TABLE IF NOT EXISTS %s (
  id            TEXT PRIMARY KEY,
  taken_at      TIMESTAMPTZ NOT NULL,
  message_count INTEGER NOT NULL,
  payload       JSONB NOT NULL
);`, pgx.Identifier{s.schema}.Sanitize(), s.table())

	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("snapshot: ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, snap message.Snapshot) (message.SnapshotInfo, error) {
	id, err := NewID(snap.TakenAt)
	if err != nil {
		return message.SnapshotInfo{}, err
	}
	payload, err := encode(snap)
	if err != nil {
		return message.SnapshotInfo{}, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (id, taken_at, message_count, payload) VALUES ($1, $2, $3, $4)`,
		id, snap.TakenAt, len(snap.Messages), payload,
	)
	if err != nil {
		return message.SnapshotInfo{}, fmt.Errorf("snapshot: insert: %w", err)
	}
	return infoFor(id, BackendPostgres, snap), nil
}

func (s *PostgresStore) Latest(ctx context.Context) (message.Snapshot, message.SnapshotInfo, error) {
	var (
		id      string
		payload []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, payload FROM `+s.table()+` ORDER BY id DESC LIMIT 1`,
	).Scan(&id, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return message.Snapshot{}, message.SnapshotInfo{}, ErrNoSnapshot
	}
	if err != nil {
		return message.Snapshot{}, message.SnapshotInfo{}, fmt.Errorf("snapshot: select latest: %w", err)
	}

	snap, err := decode(payload)
	if err != nil {
		return message.Snapshot{}, message.SnapshotInfo{}, err
	}
	return snap, infoFor(id, BackendPostgres, snap), nil
}

func (s *PostgresStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+s.table()+` WHERE id NOT IN (SELECT id FROM `+s.table()+` ORDER BY id DESC LIMIT $1)`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("snapshot: prune: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Close() error {
	if s.ownsPool && s.pool != nil {
		s.pool.Close()
	}
	return nil
}
