package annotation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the notes table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS notes (
    id               TEXT PRIMARY KEY,
    start_word_index INTEGER NOT NULL,
    end_word_index   INTEGER NOT NULL,
    start_time       DOUBLE PRECISION NOT NULL,
    end_time         DOUBLE PRECISION NOT NULL,
    quote            TEXT NOT NULL DEFAULT '',
    content          TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    CHECK (start_word_index <= end_word_index)
);
CREATE INDEX IF NOT EXISTS idx_notes_order ON notes(start_time, start_word_index, created_at);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL. The display ordering
// invariant is enforced by the List query's ORDER BY rather than an
// application-side sort, and coverage checks are answered by a range query.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] over the given connection or
// pool. The caller is responsible for calling [PostgresStore.Migrate] before
// issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL, creating the notes table and index if
// they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("annotation: migrate: %w", err)
	}
	return nil
}

// Create implements [Store.Create].
func (s *PostgresStore) Create(ctx context.Context, note Note) (Note, error) {
	if err := validate(note); err != nil {
		return Note{}, err
	}
	if note.ID == "" {
		id, err := generateID()
		if err != nil {
			return Note{}, fmt.Errorf("annotation: generate id: %w", err)
		}
		note.ID = id
	}

	var err error
	if note.CreatedAt.IsZero() {
		const query = `
			INSERT INTO notes (id, start_word_index, end_word_index, start_time, end_time, quote, content)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at`
		err = s.db.QueryRow(ctx, query,
			note.ID, note.StartWordIndex, note.EndWordIndex,
			note.StartTime, note.EndTime, note.Quote, note.Content,
		).Scan(&note.CreatedAt)
	} else {
		const query = `
			INSERT INTO notes (id, start_word_index, end_word_index, start_time, end_time, quote, content, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at`
		err = s.db.QueryRow(ctx, query,
			note.ID, note.StartWordIndex, note.EndWordIndex,
			note.StartTime, note.EndTime, note.Quote, note.Content, note.CreatedAt,
		).Scan(&note.CreatedAt)
	}
	if err != nil {
		return Note{}, fmt.Errorf("annotation: create: %w", err)
	}
	return note, nil
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, id string) (Note, error) {
	const query = `
		SELECT id, start_word_index, end_word_index, start_time, end_time, quote, content, created_at
		FROM notes WHERE id = $1`

	var n Note
	err := s.db.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.StartWordIndex, &n.EndWordIndex,
		&n.StartTime, &n.EndTime, &n.Quote, &n.Content, &n.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, fmt.Errorf("annotation: get %q: %w", id, err)
	}
	return n, nil
}

// List implements [Store.List].
func (s *PostgresStore) List(ctx context.Context) ([]Note, error) {
	const query = `
		SELECT id, start_word_index, end_word_index, start_time, end_time, quote, content, created_at
		FROM notes
		ORDER BY start_time, start_word_index, created_at`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("annotation: list: %w", err)
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(
			&n.ID, &n.StartWordIndex, &n.EndWordIndex,
			&n.StartTime, &n.EndTime, &n.Quote, &n.Content, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("annotation: scan note: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("annotation: list rows: %w", err)
	}
	return out, nil
}

// UpdateContent implements [Store.UpdateContent].
func (s *PostgresStore) UpdateContent(ctx context.Context, id string, content string) error {
	tag, err := s.db.Exec(ctx, `UPDATE notes SET content = $2 WHERE id = $1`, id, content)
	if err != nil {
		return fmt.Errorf("annotation: update %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete implements [Store.Delete].
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("annotation: delete %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IsTokenAnnotated implements [Store.IsTokenAnnotated].
func (s *PostgresStore) IsTokenAnnotated(ctx context.Context, i int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM notes WHERE start_word_index <= $1 AND end_word_index >= $1)`

	var covered bool
	if err := s.db.QueryRow(ctx, query, i).Scan(&covered); err != nil {
		return false, fmt.Errorf("annotation: coverage check: %w", err)
	}
	return covered, nil
}
