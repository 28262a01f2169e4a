package luzidos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresDocumentStore keeps documents in a single table keyed by path.
// Conditional writes use a guarded UPDATE, so it implements DocumentCAS and
// locks taken against it are true mutual exclusion across processes.
type PostgresDocumentStore struct {
	db *sql.DB
}

// NewPostgresDocumentStore creates a store on an open database handle.
func NewPostgresDocumentStore(db *sql.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

// EnsureSchema creates the documents table if it does not exist.
func (s *PostgresDocumentStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			path       TEXT PRIMARY KEY,
			body       BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return WrapError(ErrorTypeTransientIO, err)
	}
	return nil
}

func (s *PostgresDocumentStore) GetJSON(ctx context.Context, path string, v any) error {
	data, err := s.GetObject(ctx, path)
	if err != nil {
		return err
	}
	return unmarshalDocument(data, v)
}

func (s *PostgresDocumentStore) PutJSON(ctx context.Context, path string, v any) error {
	data, err := marshalDocument(v)
	if err != nil {
		return err
	}
	return s.PutObject(ctx, path, data)
}

func (s *PostgresDocumentStore) GetObject(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE path = $1`, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewAgentError(ErrorTypeNotFound, fmt.Sprintf("document %q not found", path))
	}
	if err != nil {
		return nil, WrapError(ErrorTypeTransientIO, err)
	}
	return data, nil
}

func (s *PostgresDocumentStore) PutObject(ctx context.Context, path string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (path, body, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (path) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		path, data)
	if err != nil {
		return WrapError(ErrorTypeTransientIO, err)
	}
	return nil
}

func (s *PostgresDocumentStore) Exists(ctx context.Context, path string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE path = $1)`, path).Scan(&exists)
	if err != nil {
		return false, WrapError(ErrorTypeTransientIO, err)
	}
	return exists, nil
}

func (s *PostgresDocumentStore) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM documents WHERE path LIKE $1 || '%' ORDER BY path`, prefix)
	if err != nil {
		return nil, WrapError(ErrorTypeTransientIO, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, WrapError(ErrorTypeTransientIO, err)
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError(ErrorTypeTransientIO, err)
	}
	return paths, nil
}

func (s *PostgresDocumentStore) Copy(ctx context.Context, src, dst string) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (path, body, updated_at)
		SELECT $2, body, now() FROM documents WHERE path = $1
		ON CONFLICT (path) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		src, dst)
	if err != nil {
		return WrapError(ErrorTypeTransientIO, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return WrapError(ErrorTypeTransientIO, err)
	}
	if affected == 0 {
		return NewAgentError(ErrorTypeNotFound, fmt.Sprintf("document %q not found", src))
	}
	return nil
}

// CompareAndSwapJSON implements DocumentCAS with a guarded write.
func (s *PostgresDocumentStore) CompareAndSwapJSON(ctx context.Context, path string, v any, previous []byte) (bool, error) {
	data, err := marshalDocument(v)
	if err != nil {
		return false, err
	}
	var result sql.Result
	if previous == nil {
		result, err = s.db.ExecContext(ctx, `
			INSERT INTO documents (path, body, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (path) DO NOTHING`,
			path, data)
	} else {
		result, err = s.db.ExecContext(ctx, `
			UPDATE documents SET body = $2, updated_at = now()
			WHERE path = $1 AND body = $3`,
			path, data, previous)
	}
	if err != nil {
		return false, WrapError(ErrorTypeTransientIO, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, WrapError(ErrorTypeTransientIO, err)
	}
	return affected == 1, nil
}
