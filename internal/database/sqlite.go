package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/store"

	_ "modernc.org/sqlite"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements store.Store on an embedded SQLite file. Instants are
// kept as unix nanoseconds so range comparisons are numeric.
type SQLiteStore struct {
	db  *sql.DB
	q   querier
	now func() time.Time
}

// OpenSQLite opens the database file, creating its directory and schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := &SQLiteStore{db: db, q: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.InitSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// InitSchema ensures the documents table exists.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			data TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (collection, id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_owner_ts ON documents(collection, owner_id, ts DESC, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, owner_id, ts, data, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

const sqliteUpsert = `INSERT INTO documents (collection, id, owner_id, ts, data, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(collection, id) DO UPDATE SET
		owner_id = excluded.owner_id,
		ts = excluded.ts,
		data = excluded.data,
		updated_at = excluded.updated_at`

func (s *SQLiteStore) Put(ctx context.Context, collection string, doc store.Document) error {
	now := s.now().UnixNano()
	_, err := s.q.ExecContext(ctx, sqliteUpsert,
		collection, doc.ID, doc.OwnerID, doc.Timestamp.UTC().UnixNano(), string(doc.Data), now, now)
	return err
}

func (s *SQLiteStore) BatchPut(ctx context.Context, writes []store.Write) error {
	writes = store.DedupeWrites(writes)
	if len(writes) == 0 {
		return nil
	}
	return s.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		for _, w := range writes {
			if err := tx.Put(ctx, w.Collection, w.Doc); err != nil {
				return fmt.Errorf("write %s/%s: %w", w.Collection, w.Doc.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	return err
}

func (s *SQLiteStore) BatchDelete(ctx context.Context, keys []store.Key) error {
	if len(keys) == 0 {
		return nil
	}
	return s.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		for _, k := range keys {
			if err := tx.Delete(ctx, k.Collection, k.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Find(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	where := []string{"collection = ?"}
	args := []any{collection}
	if q.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, q.OwnerID)
	}
	if q.At != nil {
		where = append(where, "ts = ?")
		args = append(args, q.At.UTC().UnixNano())
	} else {
		if q.From != nil {
			where = append(where, "ts >= ?")
			args = append(args, q.From.UTC().UnixNano())
		}
		if q.To != nil {
			where = append(where, "ts <= ?")
			args = append(args, q.To.UTC().UnixNano())
		}
	}

	order, cmp := "ts DESC, id DESC", "<"
	if q.Order == store.Ascending {
		order, cmp = "ts ASC, id ASC", ">"
	}
	if q.After != nil {
		ts := q.After.Timestamp.UTC().UnixNano()
		where = append(where, fmt.Sprintf("(ts %s ? OR (ts = ? AND id %s ?))", cmp, cmp))
		args = append(args, ts, ts, q.After.ID)
	}

	query := `SELECT id, owner_id, ts, data, created_at, updated_at FROM documents WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY ` + order
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]store.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) Transact(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, &SQLiteStore{db: s.db, q: tx, now: s.now}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	if _, ok := s.q.(*sql.Tx); ok || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (store.Document, error) {
	var (
		doc                  store.Document
		ts, created, updated int64
		data                 string
	)
	if err := sc.Scan(&doc.ID, &doc.OwnerID, &ts, &data, &created, &updated); err != nil {
		return store.Document{}, err
	}
	doc.Timestamp = time.Unix(0, ts).UTC()
	doc.CreatedAt = time.Unix(0, created).UTC()
	doc.UpdatedAt = time.Unix(0, updated).UTC()
	doc.Data = []byte(data)
	return doc, nil
}
