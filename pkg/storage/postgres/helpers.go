package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platinummonkey/warden/pkg/auth"
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ReadPool hands out a read handle per query. *ConnectionManager implements
// it by rotating through its healthy replicas.
type ReadPool interface {
	Replica() *sql.DB
}

// SinglePool serves every read from db
func SinglePool(db *sql.DB) ReadPool {
	return singlePool{db: db}
}

type singlePool struct {
	db *sql.DB
}

func (p singlePool) Replica() *sql.DB { return p.db }

func readPool(db *sql.DB, read ReadPool) ReadPool {
	if read == nil {
		return SinglePool(db)
	}
	return read
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// withTx runs fn in a transaction, committing when fn returns nil
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// uuidArray binds ids as a Postgres uuid[] parameter. Queries cast it
// with $n::uuid[].
func uuidArray(ids []uuid.UUID) interface{} {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	return pq.Array(strs)
}

// parseUUIDs converts an aggregated uuid[] column
func parseUUIDs(strs []string) ([]uuid.UUID, error) {
	if len(strs) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(strs))
	for i, s := range strs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid %q: %w", s, err)
		}
		ids[i] = id
	}
	return ids, nil
}

// encodePermissions stores custom permissions as JSONB. Nil stays NULL.
func encodePermissions(p *auth.Permissions) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal permissions: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// decodePermissions reads a JSONB permissions column
func decodePermissions(data []byte) (*auth.Permissions, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var p auth.Permissions
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}
	return &p, nil
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
