package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func ok(context.Context) error { return nil }

func failing(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(t *testing.T, h *Handler, path string) (int, Report) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var rep Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return rec.Code, rep
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	// Liveness ignores failing dependencies.
	code, rep := serve(t, New(Checker{Name: "store", Check: failing("locked")}), "/healthz")
	if code != http.StatusOK || rep.Status != StatusOK || rep.Checks != nil {
		t.Errorf("/healthz = %d %+v", code, rep)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: StatusOK,
			wantChecks: map[string]string{},
		},
		{
			name:       "all pass",
			checkers:   []Checker{{Name: "store", Check: ok}, {Name: "grammar", Check: ok}},
			wantCode:   http.StatusOK,
			wantStatus: StatusOK,
			wantChecks: map[string]string{"store": StatusOK, "grammar": StatusOK},
		},
		{
			name:       "required check fails",
			checkers:   []Checker{{Name: "store", Check: failing("database is locked")}, {Name: "grammar", Check: ok}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusFail,
			wantChecks: map[string]string{"store": StatusFail, "grammar": StatusOK},
		},
		{
			name:       "optional check fails",
			checkers:   []Checker{{Name: "store", Check: ok}, {Name: "llm", Check: failing("model not available"), Optional: true}},
			wantCode:   http.StatusOK,
			wantStatus: StatusDegraded,
			wantChecks: map[string]string{"store": StatusOK, "llm": StatusFail},
		},
		{
			name: "required failure wins over degraded",
			checkers: []Checker{
				{Name: "llm", Check: failing("down"), Optional: true},
				{Name: "grammar", Check: failing("connection refused")},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusFail,
			wantChecks: map[string]string{"llm": StatusFail, "grammar": StatusFail},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, rep := serve(t, New(tt.checkers...), "/readyz")
			if code != tt.wantCode || rep.Status != tt.wantStatus {
				t.Errorf("/readyz = %d %q, want %d %q", code, rep.Status, tt.wantCode, tt.wantStatus)
			}
			if len(rep.Checks) != len(tt.wantChecks) {
				t.Errorf("checks = %+v, want %v", rep.Checks, tt.wantChecks)
			}
			for name, want := range tt.wantChecks {
				if got := rep.Checks[name].Status; got != want {
					t.Errorf("check %s = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestRun_ReportsErrorText(t *testing.T) {
	t.Parallel()

	rep := New(Checker{Name: "grammar", Check: failing("connection refused")}).Run(context.Background())
	if got := rep.Checks["grammar"]; got.Error != "connection refused" || got.Optional {
		t.Errorf("grammar result = %+v", got)
	}
}

func TestRun_Concurrent(t *testing.T) {
	t.Parallel()

	// Each check waits for the other, so sequential evaluation would time out.
	a, b := make(chan struct{}), make(chan struct{})
	wait := func(mine, other chan struct{}) func(context.Context) error {
		return func(ctx context.Context) error {
			close(mine)
			select {
			case <-other:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	rep := New(Checker{Name: "a", Check: wait(a, b)}, Checker{Name: "b", Check: wait(b, a)}).Run(context.Background())
	if rep.Status != StatusOK {
		t.Errorf("report = %+v", rep)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := New(Checker{Name: "store", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}).Run(ctx)
	if rep.Status != StatusFail || rep.Checks["store"].Error != context.Canceled.Error() {
		t.Errorf("report = %+v", rep)
	}
}

func TestPingCheck(t *testing.T) {
	t.Parallel()

	good := PingCheck("store", pingFunc(ok))
	bad := PingCheck("store", pingFunc(failing("database is locked")))
	if good.Name != "store" || good.Optional || good.Check(context.Background()) != nil {
		t.Errorf("healthy PingCheck = %+v", good)
	}
	if err := bad.Check(context.Background()); err == nil || err.Error() != "database is locked" {
		t.Errorf("unhealthy PingCheck error = %v", err)
	}
}

func TestModelCheck(t *testing.T) {
	t.Parallel()

	installed := map[string]bool{"llama3.2:3b": true}
	probe := func(_ context.Context, model string) bool { return installed[model] }

	c := ModelCheck("llm", "llama3.2:3b", probe)
	if !c.Optional {
		t.Error("ModelCheck should be optional")
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("installed model: %v", err)
	}
	if err := ModelCheck("llm", "mistral:7b", probe).Check(context.Background()); !errors.Is(err, ErrModelMissing) {
		t.Errorf("missing model error = %v, want ErrModelMissing", err)
	}
}
