package languagetool_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/lingocoach/pkg/provider/grammar"
	"github.com/MrWong99/lingocoach/pkg/provider/grammar/languagetool"
)

const checkReply = `{
  "software": {"name": "LanguageTool"},
  "matches": [
    {
      "message": "The verb 'has' does not agree with the subject 'I'.",
      "context": {"text": "I has went to\nthe store", "offset": 2, "length": 3},
      "rule": {"id": "NON3PRS_VERB", "description": "Agreement"}
    },
    {
      "message": "Possible typo.",
      "context": {"text": "wnet", "offset": 0, "length": 4},
      "rule": {"id": ""}
    }
  ]
}`

func newServer(t *testing.T, status int, body string, form *url.Values, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/check":
			if err := r.ParseForm(); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if form != nil {
				*form = r.PostForm
			}
			w.WriteHeader(status)
			_, _ = io.WriteString(w, body)
		case r.Method == http.MethodGet && r.URL.Path == "/v2/languages":
			_, _ = io.WriteString(w, `[{"name":"English (US)","code":"en","longCode":"en-US"}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheck(t *testing.T) {
	t.Parallel()

	var form url.Values
	srv := newServer(t, http.StatusOK, checkReply, &form, nil)

	c, err := languagetool.New(srv.URL+"/", "en-US")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	matches, err := c.Check(context.Background(), "I has went to the store")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if got := form.Get("language"); got != "en-US" {
		t.Errorf("language = %q, want en-US", got)
	}
	if got := form.Get("text"); got != "I has went to the store" {
		t.Errorf("text = %q", got)
	}

	want := []grammar.Match{
		{Rule: "NON3PRS_VERB", Message: "The verb 'has' does not agree with the subject 'I'.", Context: "I has went to\nthe store"},
		{Rule: "RULE", Message: "Possible typo.", Context: "wnet"},
	}
	if len(matches) != len(want) {
		t.Fatalf("got %d matches, want %d", len(matches), len(want))
	}
	for i := range want {
		if matches[i] != want[i] {
			t.Errorf("match %d = %+v, want %+v", i, matches[i], want[i])
		}
	}
}

func TestCheck_NoMatches(t *testing.T) {
	t.Parallel()

	srv := newServer(t, http.StatusOK, `{"matches":[]}`, nil, nil)
	c, _ := languagetool.New(srv.URL, "de-DE")
	matches, err := c.Check(context.Background(), "Alles gut.")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if matches == nil || len(matches) != 0 {
		t.Errorf("matches = %#v, want empty non-nil slice", matches)
	}
}

func TestCheck_Errors(t *testing.T) {
	t.Parallel()

	t.Run("bad status", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, http.StatusBadRequest, "Error: 'xx' is not a language code", nil, nil)
		c, _ := languagetool.New(srv.URL, "xx")
		_, err := c.Check(context.Background(), "text")
		if err == nil || !strings.Contains(err.Error(), "HTTP 400") || !strings.Contains(err.Error(), "not a language code") {
			t.Errorf("error = %v, want HTTP 400 with body", err)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, http.StatusOK, "<html>", nil, nil)
		c, _ := languagetool.New(srv.URL, "fr")
		if _, err := c.Check(context.Background(), "text"); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()
		c, _ := languagetool.New("http://127.0.0.1:1", "es")
		if _, err := c.Check(context.Background(), "text"); err == nil {
			t.Error("expected transport error")
		}
	})
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := languagetool.New("http://x", ""); err == nil {
		t.Error("expected error for empty language")
	}
}

func TestNewFactory(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newServer(t, http.StatusOK, `{"matches":[]}`, nil, &calls)
	f := languagetool.NewFactory(srv.URL)

	c, err := f("fr")
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if got := c.(*languagetool.Client).Language(); got != "fr" {
		t.Errorf("Language() = %q, want fr", got)
	}
	if calls.Load() != 0 {
		t.Error("factory must not contact the server")
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	srv := newServer(t, http.StatusOK, "", nil, nil)
	c, _ := languagetool.New(srv.URL, "en-US")
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if err := languagetool.Ping(context.Background(), nil, "http://127.0.0.1:1"); err == nil {
		t.Error("expected error pinging unreachable server")
	}
}
