// Package progress persists practice attempts and reads them back as a
// per-speaker history.
//
// The store is append-only: an [Attempt] is written once by [Store.Record] and
// never updated or deleted. [Store.List] returns the newest [HistoryLimit]
// attempts for a speaker, and [Trend] turns such a list into a time series of
// flagged grammar issues.
//
// Two backends exist. [OpenSQLite] keeps everything in a local file and is the
// default. [OpenPostgres] targets a shared PostgreSQL server. Both apply their
// embedded schema migrations on open.
package progress

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	// TimestampLayout is the format attempts are stamped with: local time at
	// seconds precision, no zone.
	TimestampLayout = "2006-01-02T15:04:05"

	// HistoryLimit is the maximum number of attempts [Store.List] returns.
	HistoryLimit = 50

	table = "attempts"
)

// ErrInvalidAttempt is returned by [Store.Record] for attempts that fail
// validation.
var ErrInvalidAttempt = errors.New("progress: invalid attempt")

// Attempt is one analysed utterance.
type Attempt struct {
	// ID is assigned by the store on insert.
	ID int64 `json:"id,omitempty"`

	SpeakerID        string `json:"speaker_id"`
	Timestamp        string `json:"ts"`
	TargetLanguage   string `json:"target_lang"`
	DetectedLanguage string `json:"detected_lang"`

	// Transcript is stored but not returned by [Store.List].
	Transcript   string `json:"transcript,omitempty"`
	WeakestPoint string `json:"weakest_point"`
	NumIssues    int    `json:"num_issues"`

	// LLMModel is empty when the attempt was analysed without the LLM.
	LLMModel string `json:"llm_model"`
}

// Validate reports whether a can be recorded.
func (a Attempt) Validate() error {
	var errs []error
	if strings.TrimSpace(a.SpeakerID) == "" {
		errs = append(errs, fmt.Errorf("%w: speaker id must not be empty", ErrInvalidAttempt))
	}
	if a.NumIssues < 0 {
		errs = append(errs, fmt.Errorf("%w: num issues must not be negative, got %d", ErrInvalidAttempt, a.NumIssues))
	}
	return errors.Join(errs...)
}

// Stamp formats t as an attempt timestamp.
func Stamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}

// Store is the persistence contract for attempts. Implementations must be
// safe for concurrent use.
type Store interface {
	// Record appends a and returns its new id. An empty Timestamp is filled
	// with the current time.
	Record(ctx context.Context, a Attempt) (int64, error)

	// List returns the newest HistoryLimit attempts of speakerID, newest
	// first. Returned attempts carry SpeakerID, Timestamp, TargetLanguage,
	// DetectedLanguage, NumIssues, WeakestPoint and LLMModel.
	List(ctx context.Context, speakerID string) ([]Attempt, error)

	// Ping checks that the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases the backing database.
	Close() error
}

// Config selects and configures a backend for [Open].
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string

	// Path is the SQLite database file.
	Path string

	// DSN is the PostgreSQL connection string.
	DSN string
}

// Open opens the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	case "postgres":
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("progress: unknown driver %q", cfg.Driver)
	}
}

// TrendPoint is one sample of the issue-count series.
type TrendPoint struct {
	Timestamp time.Time `json:"ts"`
	NumIssues int       `json:"num_issues"`
}

// Trend converts attempts into an issue-count series sorted by time,
// oldest first. Attempts whose timestamp does not parse are dropped.
func Trend(attempts []Attempt) []TrendPoint {
	points := make([]TrendPoint, 0, len(attempts))
	for _, a := range attempts {
		ts, err := time.ParseInLocation(TimestampLayout, a.Timestamp, time.Local)
		if err != nil {
			continue
		}
		points = append(points, TrendPoint{Timestamp: ts, NumIssues: a.NumIssues})
	}
	slices.SortStableFunc(points, func(x, y TrendPoint) int {
		return x.Timestamp.Compare(y.Timestamp)
	})
	return points
}

// prepare validates a and fills its timestamp.
func prepare(a Attempt, now func() time.Time) (Attempt, error) {
	if err := a.Validate(); err != nil {
		return a, err
	}
	if a.Timestamp == "" {
		a.Timestamp = Stamp(now())
	}
	return a, nil
}
