// Package archive keeps a record of finished runs in sqlite, nothing in the
// pipeline ever reads it back.
package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"feedcloud/internal/reduce"
	"feedcloud/lib/sqliteutil"
	"fmt"
	"time"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:embed schema.sql
var schema string

var tracer = otel.Tracer("feedcloud.internal.archive")

// Run is a single archived run.
type Run struct {
	ID        string
	StartedAt time.Time
	Status    string
	Scrolls   int
	Captures  int
	URIs      int
	Tags      int
	Corpus    string
	Output    string
	// Tokens is only filled by Save callers and Tokens, List leaves it empty.
	Tokens []reduce.TokenCount
}

type Archive struct {
	db *sql.DB
}

// Open opens the archive at path, ":memory:" gives a throwaway archive.
func Open(path string) (Archive, error) {
	db, err := sqliteutil.OpenDB(schema, path)
	if err != nil {
		return Archive{}, err
	}
	return Archive{db: db}, nil
}

func (a Archive) Close() error {
	return a.db.Close()
}

// Save stores run along with its token table and returns the id it was
// stored under. an id is generated if run has none.
func (a Archive) Save(ctx context.Context, run Run) (string, error) {
	ctx, span := tracer.Start(ctx, "Save")
	defer span.End()

	if run.ID == "" {
		id, err := random.String(8)
		if err != nil {
			return "", fmt.Errorf("generate run id: %w", err)
		}
		run.ID = id
	}
	span.SetAttributes(
		attribute.String("id", run.ID),
		attribute.String("status", run.Status),
		attribute.Int("tokens", len(run.Tokens)),
	)

	err := a.save(ctx, run)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return run.ID, nil
}

func (a Archive) save(ctx context.Context, run Run) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		`insert into run(id, started_at, status, scrolls, captures, uris, tags, corpus, output)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.Unix(),
		run.Status,
		run.Scrolls,
		run.Captures,
		run.URIs,
		run.Tags,
		run.Corpus,
		run.Output,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, t := range run.Tokens {
		_, err = tx.ExecContext(
			ctx,
			"insert into token(run_id, token, count) values (?, ?, ?)",
			run.ID, t.Token, t.Count,
		)
		if err != nil {
			return fmt.Errorf("insert token '%s': %w", t.Token, err)
		}
	}

	return tx.Commit()
}

// List returns up to limit runs, most recent first.
func (a Archive) List(ctx context.Context, limit int) ([]Run, error) {
	ctx, span := tracer.Start(ctx, "List")
	defer span.End()

	rows, err := a.db.QueryContext(
		ctx,
		`select id, started_at, status, scrolls, captures, uris, tags, corpus, output
		from run order by started_at desc, rowid desc limit ?`,
		limit,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		var startedAt int64
		err := rows.Scan(
			&run.ID,
			&startedAt,
			&run.Status,
			&run.Scrolls,
			&run.Captures,
			&run.URIs,
			&run.Tags,
			&run.Corpus,
			&run.Output,
		)
		if err != nil {
			return nil, err
		}
		run.StartedAt = time.Unix(startedAt, 0)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Tokens returns the token table of a run, most frequent first.
func (a Archive) Tokens(ctx context.Context, runId string) ([]reduce.TokenCount, error) {
	rows, err := a.db.QueryContext(
		ctx,
		"select token, count from token where run_id = ? order by count desc, token asc",
		runId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := []reduce.TokenCount{}
	for rows.Next() {
		var t reduce.TokenCount
		err := rows.Scan(&t.Token, &t.Count)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
