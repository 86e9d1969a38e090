package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lamim/taleforge/internal/api"
	"github.com/lamim/taleforge/internal/config"
	"github.com/lamim/taleforge/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testOptions() Options {
	return Options{
		Limits:         models.DefaultLimits(),
		CharTarget:     700,
		ContextEntries: 3,
		Templates: Templates{
			Opening:      config.GetDefaultOpeningTemplate(),
			Continuation: config.GetDefaultContinuationTemplate(),
		},
	}
}

// backendServer serves text as the generated content of every request and records the prompts
func backendServer(t *testing.T, text string, prompts *[]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.GenerateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && prompts != nil {
			*prompts = append(*prompts, req.Contents[0].Parts[0].Text)
		}
		resp := api.GenerateContentResponse{
			Candidates: []api.Candidate{{Content: &api.Content{Parts: []api.Part{{Text: text}}}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func newClient(serverURL string) *Client {
	backend := api.NewClient(api.ClientConfig{
		BaseURL:            serverURL,
		Model:              "test-model",
		APIKey:             "key",
		RateLimitPerMinute: 6000,
	}, testLogger(), nil)
	return NewClient(backend, testOptions(), testLogger())
}

func TestGenerate_Opening(t *testing.T) {
	var prompts []string
	server := backendServer(t, `{"title":"The Cellar","story":"It was dark.","options":["Run","Hide"]}`, &prompts)

	session := models.NewSession("s1", models.GenreHorror)
	scene, err := newClient(server.URL).Generate(context.Background(), session, "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(prompts) != 1 {
		t.Fatalf("Expected exactly one request, got %d", len(prompts))
	}
	if !strings.Contains(prompts[0], "Genre: Horror") || !strings.Contains(prompts[0], "opening scene") {
		t.Errorf("Opening prompt missing genre or task: %s", prompts[0])
	}
	if !strings.Contains(prompts[0], "700 characters") {
		t.Errorf("Opening prompt missing char target: %s", prompts[0])
	}
	if scene.Title != "The Cellar" || scene.Story != "It was dark." {
		t.Errorf("Unexpected scene: %+v", scene)
	}
	if !reflect.DeepEqual(scene.Options, []string{"Run", "Hide"}) {
		t.Errorf("Unexpected options: %v", scene.Options)
	}
}

func TestGenerate_FencedMatchesUnfenced(t *testing.T) {
	payload := `{"story":"The door creaks.","options":["Enter","Leave"]}`
	session := models.NewSession("s1", models.GenreMystery)

	plain, err := newClient(backendServer(t, payload, nil).URL).Generate(context.Background(), session, "")
	if err != nil {
		t.Fatalf("Unfenced generate failed: %v", err)
	}
	fenced, err := newClient(backendServer(t, "```json\n"+payload+"\n```", nil).URL).Generate(context.Background(), session, "")
	if err != nil {
		t.Fatalf("Fenced generate failed: %v", err)
	}

	if !reflect.DeepEqual(plain, fenced) {
		t.Errorf("Fenced result %+v differs from unfenced %+v", fenced, plain)
	}
}

func TestGenerate_Malformed(t *testing.T) {
	server := backendServer(t, "Once upon a time, not JSON", nil)

	_, err := newClient(server.URL).Generate(context.Background(), models.NewSession("s1", models.GenreFantasy), "")
	var genErr *api.GenerationError
	if !errors.As(err, &genErr) || genErr.Kind != api.KindMalformed {
		t.Fatalf("Expected malformed error, got %v", err)
	}
}

func TestGenerate_TransportErrorPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "internal")
	}))
	defer server.Close()

	_, err := newClient(server.URL).Generate(context.Background(), models.NewSession("s1", models.GenreSciFi), "")
	if api.KindOf(err) != api.KindTransport {
		t.Fatalf("Expected transport error, got %v", err)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("Expected status code in message, got %q", err.Error())
	}
}

func TestBuildPrompt_Continuation(t *testing.T) {
	c := NewClient(nil, testOptions(), testLogger())

	session := models.NewSession("s1", models.GenreFantasy)
	session.History = []models.HistoryEntry{
		{Role: models.RoleModel, Text: "first"},
		{Role: models.RoleUser, Text: "second"},
		{Role: models.RoleModel, Text: "third"},
		{Role: models.RoleUser, Text: "Open the gate"},
	}
	session.Progress = models.Progress{Chapter: 2, Scene: 3}

	prompt, err := c.BuildPrompt(session, "Open the gate")
	if err != nil {
		t.Fatalf("BuildPrompt failed: %v", err)
	}

	if strings.Contains(prompt, "first") {
		t.Error("Context window should only include the last 3 entries")
	}
	if !strings.Contains(prompt, "second third Open the gate...") {
		t.Errorf("Context window not joined as expected: %s", prompt)
	}
	if !strings.Contains(prompt, "Chapter 2, Scene 3") {
		t.Errorf("Prompt missing progress: %s", prompt)
	}
	if !strings.Contains(prompt, `The user just chose: "Open the gate"`) {
		t.Errorf("Prompt missing choice: %s", prompt)
	}
	if !strings.Contains(prompt, "Provide 2 distinct choices") || strings.Contains(prompt, "GRAND FINALE") {
		t.Errorf("Expected next-scene instruction: %s", prompt)
	}
}

func TestBuildPrompt_Finale(t *testing.T) {
	c := NewClient(nil, testOptions(), testLogger())

	session := models.NewSession("s1", models.GenreFantasy)
	session.History = []models.HistoryEntry{{Role: models.RoleModel, Text: "almost done"}}
	session.Progress = models.Progress{Chapter: 5, Scene: 5}

	prompt, err := c.BuildPrompt(session, "Face the dragon")
	if err != nil {
		t.Fatalf("BuildPrompt failed: %v", err)
	}
	if !strings.Contains(prompt, "GRAND FINALE") || !strings.Contains(prompt, `"options": []`) {
		t.Errorf("Expected finale instruction: %s", prompt)
	}
}

func TestParseScene(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantErr  bool
		wantOpts int
	}{
		{"plain", `{"story":"a","options":["x","y"]}`, false, 2},
		{"fenced", "```json\n{\"story\":\"a\",\"options\":[]}\n```", false, 0},
		{"missing options", `{"story":"a"}`, false, 0},
		{"missing story", `{"options":["x"]}`, true, 0},
		{"not json", "nope", true, 0},
		{"truncated", `{"story":"a","options":["x"`, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scene, err := ParseScene(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseScene() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if api.KindOf(err) != api.KindMalformed {
					t.Errorf("Expected malformed kind, got %s", api.KindOf(err))
				}
				return
			}
			if scene.Options == nil || len(scene.Options) != tt.wantOpts {
				t.Errorf("Expected %d non-nil options, got %v", tt.wantOpts, scene.Options)
			}
		})
	}
}

type countingBackend struct {
	calls atomic.Int32
	text  string
}

func (b *countingBackend) GenerateContent(ctx context.Context, prompt string) (string, error) {
	b.calls.Add(1)
	return b.text, nil
}

func TestGenerate_UsesInjectedBackend(t *testing.T) {
	backend := &countingBackend{text: `{"story":"s","options":["a","b"]}`}
	c := NewClient(backend, testOptions(), testLogger())

	if _, err := c.Generate(context.Background(), models.NewSession("s1", models.GenreSciFi), ""); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if backend.calls.Load() != 1 {
		t.Errorf("Expected one backend call, got %d", backend.calls.Load())
	}
}
