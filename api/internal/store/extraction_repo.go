package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const schema = `
create table if not exists extractions (
  id           uuid primary key,
  created_at   timestamptz not null default now(),
  source       text not null,
  engine       text not null,
  model        text not null,
  image_sha256 text not null,
  mime_type    text not null,
  image_bytes  integer not null,
  prompt_chars integer not null,
  kind         text not null,
  status_code  integer not null default 0,
  duration_ms  bigint not null
);
create index if not exists extractions_created_at_idx on extractions (created_at desc);`

const (
	defaultRecent = 20
	maxRecent     = 200
)

// Extraction is one journal row. Neither the image nor the extracted text is
// kept; the hash lets repeated uploads be spotted.
type Extraction struct {
	ID          uuid.UUID `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Source      string    `json:"source"` // "web" | "api" | "telegram"
	Engine      string    `json:"engine"`
	Model       string    `json:"model"`
	ImageSHA256 string    `json:"image_sha256"`
	MIMEType    string    `json:"mime_type"`
	ImageBytes  int       `json:"image_bytes"`
	PromptChars int       `json:"prompt_chars"`
	Kind        string    `json:"kind"`
	StatusCode  int       `json:"status_code,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
}

type ExtractionRepo struct{ DB *sql.DB }

func NewExtractionRepo(db *sql.DB) *ExtractionRepo { return &ExtractionRepo{DB: db} }

func (r *ExtractionRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Insert stores the row, assigning an ID when it has none.
func (r *ExtractionRepo) Insert(ctx context.Context, e *Extraction) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	const q = `
insert into extractions (
  id, source, engine, model, image_sha256, mime_type,
  image_bytes, prompt_chars, kind, status_code, duration_ms
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
returning created_at`
	return r.DB.QueryRowContext(ctx, q,
		e.ID, e.Source, e.Engine, e.Model, e.ImageSHA256, e.MIMEType,
		e.ImageBytes, e.PromptChars, e.Kind, e.StatusCode, e.DurationMS,
	).Scan(&e.CreatedAt)
}

// Recent returns the newest rows first.
func (r *ExtractionRepo) Recent(ctx context.Context, limit int) ([]Extraction, error) {
	const q = `
select id, created_at, source, engine, model, image_sha256, mime_type,
       image_bytes, prompt_chars, kind, status_code, duration_ms
from extractions
order by created_at desc
limit $1`
	rows, err := r.DB.QueryContext(ctx, q, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Extraction, 0, ClampLimit(limit))
	for rows.Next() {
		var e Extraction
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Source, &e.Engine, &e.Model, &e.ImageSHA256,
			&e.MIMEType, &e.ImageBytes, &e.PromptChars, &e.Kind, &e.StatusCode, &e.DurationMS); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeOlderThan удаляет старые записи журнала, чтобы не раздувать БД.
func (r *ExtractionRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	res, err := r.DB.ExecContext(ctx, `delete from extractions where created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}

// ClampLimit bounds a caller-supplied page size.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultRecent
	case n > maxRecent:
		return maxRecent
	default:
		return n
	}
}
