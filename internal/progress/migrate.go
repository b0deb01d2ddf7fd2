package progress

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

// insertColumns lists the writable columns in insert order.
var insertColumns = []string{
	"speaker_id", "ts", "target_lang", "detected_lang",
	"transcript", "weakest_point", "num_issues", "llm_model",
}

// listColumns lists the columns List reads, in scan order.
var listColumns = []string{
	"ts", "target_lang", "detected_lang", "num_issues", "weakest_point", "llm_model",
}

// migrate applies the embedded migrations in dir to db.
func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string) error {
	fsys, err := fs.Sub(migrations, "migrations/"+dir)
	if err != nil {
		return fmt.Errorf("progress: migrations: %w", err)
	}
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("progress: migrations: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("progress: migrate: %w", err)
	}
	for _, r := range results {
		slog.Debug("progress: applied migration", "dialect", dir, "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// insertQuery builds the INSERT for a.
func insertQuery(a Attempt, ph sq.PlaceholderFormat) sq.InsertBuilder {
	return sq.Insert(table).
		Columns(insertColumns...).
		Values(a.SpeakerID, a.Timestamp, a.TargetLanguage, a.DetectedLanguage,
			a.Transcript, a.WeakestPoint, a.NumIssues, a.LLMModel).
		PlaceholderFormat(ph)
}

// listQuery builds the history SELECT for speakerID.
func listQuery(speakerID string, ph sq.PlaceholderFormat) sq.SelectBuilder {
	return sq.Select(listColumns...).
		From(table).
		Where(sq.Eq{"speaker_id": speakerID}).
		OrderBy("id DESC").
		Limit(HistoryLimit).
		PlaceholderFormat(ph)
}

// nullableRow receives one List row. Columns other than ts may be NULL in
// databases written by older tools.
type nullableRow struct {
	ts, target, detected, weakest, model sql.NullString
	issues                               sql.NullInt64
}

func (r *nullableRow) dest() []any {
	return []any{&r.ts, &r.target, &r.detected, &r.issues, &r.weakest, &r.model}
}

func (r *nullableRow) attempt(speakerID string) Attempt {
	return Attempt{
		SpeakerID:        speakerID,
		Timestamp:        r.ts.String,
		TargetLanguage:   r.target.String,
		DetectedLanguage: r.detected.String,
		NumIssues:        int(r.issues.Int64),
		WeakestPoint:     r.weakest.String,
		LLMModel:         r.model.String,
	}
}
