package util

import (
	"strings"
	"sync"
	"testing"
)

func TestRenderTemplate_Basic(t *testing.T) {
	tmpl := "Write a {{.Genre}} story of about {{.CharTarget}} characters."
	data := map[string]interface{}{
		"Genre":      "Horror",
		"CharTarget": 700,
	}

	result, err := RenderTemplate(tmpl, data)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := "Write a Horror story of about 700 characters."
	if result != expected {
		t.Errorf("Expected '%s', got '%s'", expected, result)
	}
}

func TestRenderTemplate_Conditional(t *testing.T) {
	tmpl := "{{if .IsFinale}}Conclude the story.{{else}}Offer 2 choices.{{end}}"

	finale, err := RenderTemplate(tmpl, map[string]interface{}{"IsFinale": true})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if finale != "Conclude the story." {
		t.Errorf("Unexpected finale render: %s", finale)
	}

	next, err := RenderTemplate(tmpl, map[string]interface{}{"IsFinale": false})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if next != "Offer 2 choices." {
		t.Errorf("Unexpected continuation render: %s", next)
	}
}

func TestRenderTemplate_InvalidTemplate(t *testing.T) {
	_, err := RenderTemplate("Hello {{.Name", map[string]interface{}{"Name": "Alice"})
	if err == nil {
		t.Error("Expected error for invalid template, got nil")
	}
}

func TestRenderTemplate_MissingKey(t *testing.T) {
	_, err := RenderTemplate("Hello {{.Name}}", map[string]interface{}{})
	if err == nil {
		t.Error("Expected error for missing key, got nil")
	}
}

func TestRenderTemplate_ForbiddenDirectives(t *testing.T) {
	tests := []string{
		`{{define "x"}}evil{{end}}`,
		`{{template "x"}}`,
		`{{block "x" .}}{{end}}`,
		`{{call .Fn}}`,
	}

	for _, tmpl := range tests {
		if _, err := RenderTemplate(tmpl, map[string]interface{}{}); err == nil {
			t.Errorf("Expected forbidden directive error for %q", tmpl)
		} else if !strings.Contains(err.Error(), "forbidden directive") {
			t.Errorf("Unexpected error for %q: %v", tmpl, err)
		}
		if err := ValidateTemplate(tmpl); err == nil {
			t.Errorf("ValidateTemplate accepted %q", tmpl)
		}
	}
}

func TestRenderTemplate_ConcurrentCacheAccess(t *testing.T) {
	ClearTemplateCache()

	tmpl := "Scene {{.Scene}}"
	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := RenderTemplate(tmpl, map[string]interface{}{"Scene": n}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent render failed: %v", err)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is longer", 4, "this..."},
		{"日本語テキスト", 3, "日本語..."},
	}

	for _, tt := range tests {
		if got := TruncateString(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}
