// internal/adapters/out/db/record_store_pg.go
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	dbcommon "storefront/internal/adapters/out/db/common"
)

// DefaultRecordTable holds every storefront record (carts, guest carts, guest sessions).
const DefaultRecordTable = "storefront_records"

// ErrSchemaMissing means EnsureSchema has not run against this database.
var ErrSchemaMissing = errors.New("record_store_pg: record table missing")

// Record kinds.
const (
	KindCart         = "cart"
	KindGuestCart    = "guest_cart"
	KindGuestSession = "guest_session"
)

// RecordStorePG stores JSON snapshots keyed by (kind, key).
//
// Table design:
//
//	kind text, key text, payload jsonb, updated_at timestamptz, expires_at timestamptz NULL
//	PRIMARY KEY (kind, key)
type RecordStorePG struct {
	DB    *sql.DB
	Table string
}

func NewRecordStorePG(db *sql.DB, table string) *RecordStorePG {
	if strings.TrimSpace(table) == "" {
		table = DefaultRecordTable
	}
	return &RecordStorePG{DB: db, Table: table}
}

func (s *RecordStorePG) table() string {
	return pq.QuoteIdentifier(s.Table)
}

// EnsureSchema creates the record table and its expiry index when missing.
func (s *RecordStorePG) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  kind       text        NOT NULL,
  key        text        NOT NULL,
  payload    jsonb       NOT NULL,
  updated_at timestamptz NOT NULL,
  expires_at timestamptz NULL,
  PRIMARY KEY (kind, key)
)`, s.table()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (expires_at) WHERE expires_at IS NOT NULL`,
			pq.QuoteIdentifier(s.Table+"_expires_at_idx"), s.table()),
	}
	return dbcommon.WithTx(ctx, s.DB, func(ctx context.Context) error {
		for _, q := range stmts {
			if _, err := dbcommon.GetRunner(ctx, s.DB).ExecContext(ctx, q); err != nil {
				return err
			}
		}
		return nil
	})
}

// get decodes the record into dest. found=false when absent or expired.
func (s *RecordStorePG) get(ctx context.Context, kind, key string, dest any) (bool, error) {
	if s == nil || s.DB == nil {
		return false, errors.New("record_store_pg: db is nil")
	}
	q := fmt.Sprintf(`
SELECT payload
FROM %s
WHERE kind = $1 AND key = $2 AND (expires_at IS NULL OR expires_at > now())
LIMIT 1`, s.table())

	var raw []byte
	err := dbcommon.GetRunner(ctx, s.DB).QueryRowContext(ctx, q, kind, strings.TrimSpace(key)).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if dbcommon.IsUndefinedTable(err) {
			return false, fmt.Errorf("%w: %s", ErrSchemaMissing, s.Table)
		}
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("record_store_pg: decode %s/%s: %w", kind, key, err)
	}
	return true, nil
}

func (s *RecordStorePG) put(ctx context.Context, kind, key string, payload any, updatedAt, expiresAt time.Time) error {
	if s == nil || s.DB == nil {
		return errors.New("record_store_pg: db is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("record_store_pg: key is empty")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("record_store_pg: encode %s/%s: %w", kind, key, err)
	}
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	var exp sql.NullTime
	if !expiresAt.IsZero() {
		exp = sql.NullTime{Time: expiresAt.UTC(), Valid: true}
	}

	q := fmt.Sprintf(`
INSERT INTO %s (kind, key, payload, updated_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (kind, key) DO UPDATE SET
  payload = EXCLUDED.payload,
  updated_at = EXCLUDED.updated_at,
  expires_at = EXCLUDED.expires_at`, s.table())
	_, err = dbcommon.GetRunner(ctx, s.DB).ExecContext(ctx, q, kind, key, raw, updatedAt.UTC(), exp)
	return err
}

func (s *RecordStorePG) del(ctx context.Context, kind, key string) error {
	if s == nil || s.DB == nil {
		return errors.New("record_store_pg: db is nil")
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE kind = $1 AND key = $2`, s.table())
	_, err := dbcommon.GetRunner(ctx, s.DB).ExecContext(ctx, q, kind, strings.TrimSpace(key))
	return err
}

// PurgeExpired deletes expired records of the given kinds and returns how many went.
func (s *RecordStorePG) PurgeExpired(ctx context.Context, kinds ...string) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("record_store_pg: db is nil")
	}
	if len(kinds) == 0 {
		kinds = []string{KindCart, KindGuestCart, KindGuestSession}
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE kind = ANY($1) AND expires_at IS NOT NULL AND expires_at <= now()`, s.table())
	res, err := dbcommon.GetRunner(ctx, s.DB).ExecContext(ctx, q, pq.Array(kinds))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
