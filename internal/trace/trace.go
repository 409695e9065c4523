// Package trace is the run store: every recorded execution keeps its
// program source, inputs, and output in canonical JSON, keyed by a
// UUID, so it can later be replayed through both backends and compared
// byte for byte.
package trace

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/alpha-convert/Yoink/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Store provides durable storage for recorded runs.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db    *sql.DB
	newID func() uuid.UUID
}

// Option configures a Store.
type Option func(*Store)

// WithIDSource overrides the run id generator. Tests use a fixed
// sequence so recorded ids are stable.
func WithIDSource(f func() uuid.UUID) Option {
	return func(s *Store) { s.newID = f }
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db, newID: uuid.New}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Run is one recorded execution.
type Run struct {
	ID        uuid.UUID
	Seq       int64
	CreatedAt time.Time
	GraphHash string
	Backend   string
	Program   string
	Inputs    [][]ir.Token
	Output    []ir.Token
	ErrCode   string
}

// Recording is the caller-supplied part of a Run.
type Recording struct {
	GraphHash string
	Backend   string
	Program   string
	Inputs    [][]ir.Token
	Output    []ir.Token
	ErrCode   string
}

// Record inserts a run and returns its id. Seq is assigned store-wide
// in insertion order; the single-writer connection makes the
// MAX(seq)+1 assignment race free.
func (s *Store) Record(ctx context.Context, rec Recording) (uuid.UUID, error) {
	inputsJSON, err := encodeInputs(rec.Inputs)
	if err != nil {
		return uuid.Nil, fmt.Errorf("record run: %w", err)
	}
	outputJSON, err := ir.CanonicalTokens(rec.Output)
	if err != nil {
		return uuid.Nil, fmt.Errorf("record run: %w", err)
	}

	id := s.newID()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, created_at, graph_hash, backend, program, inputs, output, err_code)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?, ?, ?, ?)
	`,
		id.String(),
		time.Now().UTC().Format(time.RFC3339Nano),
		rec.GraphHash,
		rec.Backend,
		rec.Program,
		string(inputsJSON),
		string(outputJSON),
		rec.ErrCode,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("record run: %w", err)
	}
	slog.Debug("run recorded", "id", id, "backend", rec.Backend, "err_code", rec.ErrCode)
	return id, nil
}

// Get retrieves a single run by id. Returns sql.ErrNoRows if not found.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, created_at, graph_hash, backend, program, inputs, output, err_code
		FROM runs
		WHERE id = ?
	`, id.String())
	return scanRun(row)
}

// List returns all recorded runs in insertion order.
func (s *Store) List(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, created_at, graph_hash, backend, program, inputs, output, err_code
		FROM runs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var id, createdAt, inputs, output string
	if err := row.Scan(&id, &r.Seq, &createdAt, &r.GraphHash, &r.Backend,
		&r.Program, &inputs, &output, &r.ErrCode); err != nil {
		return r, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return r, fmt.Errorf("run id %q: %w", id, err)
	}
	r.ID = parsed
	r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return r, fmt.Errorf("run %s created_at: %w", id, err)
	}
	r.Inputs, err = decodeInputs([]byte(inputs))
	if err != nil {
		return r, fmt.Errorf("run %s inputs: %w", id, err)
	}
	r.Output, err = ir.DecodeTokens([]byte(output))
	if err != nil {
		return r, fmt.Errorf("run %s output: %w", id, err)
	}
	return r, nil
}

// encodeInputs renders the input sequences as a canonical JSON array of
// token arrays.
func encodeInputs(inputs [][]ir.Token) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, in := range inputs {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := ir.CanonicalTokens(in)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func decodeInputs(data []byte) ([][]ir.Token, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	inputs := make([][]ir.Token, len(raw))
	for i, r := range raw {
		toks, err := ir.DecodeTokens(r)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		inputs[i] = toks
	}
	return inputs, nil
}
