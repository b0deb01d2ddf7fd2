package llm_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/lingocoach/pkg/provider/llm"
	"github.com/MrWong99/lingocoach/pkg/provider/llm/mock"
)

// noLister implements llm.Provider but not llm.ModelLister.
type noLister struct{}

func (noLister) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{}, nil
}

func (noLister) Model() string { return "m" }

func TestHasModel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	p := &mock.Provider{Models: []string{"llama3.2:3b", "mistral:latest"}}
	if !llm.HasModel(ctx, p, "llama3.2:3b") {
		t.Error("HasModel(llama3.2:3b) = false, want true")
	}
	if llm.HasModel(ctx, p, "phi3") {
		t.Error("HasModel(phi3) = true, want false")
	}

	failing := &mock.Provider{ListModelsErr: errors.New("connection refused")}
	if llm.HasModel(ctx, failing, "llama3.2:3b") {
		t.Error("HasModel with listing error = true, want false")
	}

	if llm.HasModel(ctx, noLister{}, "m") {
		t.Error("HasModel on provider without ModelLister = true, want false")
	}
}

func TestPreview(t *testing.T) {
	t.Parallel()

	short := llm.Preview([]byte("not found"))
	if short != "not found" {
		t.Errorf("Preview(short) = %q", short)
	}

	// Truncation counts characters, not bytes.
	long := llm.Preview([]byte(strings.Repeat("é", llm.MaxBodyPreview+10)))
	if n := len([]rune(long)); n != llm.MaxBodyPreview {
		t.Errorf("Preview(long) has %d runes, want %d", n, llm.MaxBodyPreview)
	}
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	err := &llm.StatusError{StatusCode: 404, URL: "http://localhost:11434/api/chat", BodyPreview: "model not found"}
	msg := err.Error()
	for _, want := range []string{"404", "http://localhost:11434/api/chat", "model not found"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}
