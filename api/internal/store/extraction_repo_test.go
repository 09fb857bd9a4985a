package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{in: -1, want: defaultRecent},
		{in: 0, want: defaultRecent},
		{in: 5, want: 5},
		{in: maxRecent, want: maxRecent},
		{in: maxRecent + 1, want: maxRecent},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// Runs against a real Postgres when TEST_DATABASE_URL is set.
func TestExtractionRepoPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	repo := NewExtractionRepo(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}

	row := &Extraction{
		Source:      "api",
		Engine:      "gemini",
		Model:       "gemini-2.0-flash",
		ImageSHA256: "abc",
		MIMEType:    "image/jpeg",
		ImageBytes:  10,
		PromptChars: 33,
		Kind:        "ok",
		DurationMS:  12,
	}
	if err := repo.Insert(ctx, row); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if row.ID == uuid.Nil || row.CreatedAt.IsZero() {
		t.Fatalf("Insert() did not fill ID/CreatedAt: %+v", row)
	}

	got, err := repo.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	found := false
	for _, e := range got {
		if e.ID == row.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("inserted row not returned by Recent()")
	}

	if _, err := repo.PurgeOlderThan(ctx, 0); err == nil {
		t.Fatalf("PurgeOlderThan(0) expected error")
	}
	if _, err := repo.PurgeOlderThan(ctx, 24*time.Hour*365*100); err != nil {
		t.Fatalf("PurgeOlderThan() error = %v", err)
	}
}
