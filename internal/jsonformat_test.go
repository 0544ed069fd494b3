package internal

import (
	"strings"
	"testing"
)

const escapedSearchRequest = `{\"destination\": \"Lisbon\", \"nights\": 4, \"travellers\": 2, \"budget\": \"medium\"}`

func TestFormatEmbeddedJSON_ValidSpan(t *testing.T) {
	input := "Search request: " + escapedSearchRequest + " sent."

	got := FormatEmbeddedJSON(input)
	if !got.HasJSON {
		t.Error("HasJSON = false, want true")
	}
	if !strings.Contains(got.Text, "```json\n") {
		t.Fatalf("Text missing json fence: %q", got.Text)
	}
	if !strings.Contains(got.Text, `"destination": "Lisbon"`) {
		t.Errorf("Text missing pretty-printed field: %q", got.Text)
	}
	if !strings.HasPrefix(got.Text, "Search request: ") {
		t.Errorf("surrounding text lost: %q", got.Text)
	}
	if !strings.HasSuffix(got.Text, " sent.") {
		t.Errorf("trailing text lost: %q", got.Text)
	}
	if strings.Contains(got.Text, `\"destination\"`) {
		t.Errorf("escaped span survived replacement: %q", got.Text)
	}
}

func TestFormatEmbeddedJSON_Idempotent(t *testing.T) {
	input := "Search request: " + escapedSearchRequest

	first := FormatEmbeddedJSON(input)
	second := FormatEmbeddedJSON(first.Text)

	if second.Text != first.Text {
		t.Errorf("second pass changed output:\nfirst:  %q\nsecond: %q", first.Text, second.Text)
	}
	if !second.HasJSON {
		t.Error("second pass HasJSON = false, want true")
	}
}

func TestFormatEmbeddedJSON_ShortSpanUntouched(t *testing.T) {
	input := `Tiny blob {\"a\": 1} here`

	got := FormatEmbeddedJSON(input)
	if got.Text != input {
		t.Errorf("Text = %q, want unchanged input", got.Text)
	}
	if got.HasJSON {
		t.Error("HasJSON = true, want false")
	}
}

func TestFormatEmbeddedJSON_InvalidSpanFallsBackToText(t *testing.T) {
	input := `Payload: {\"destination\": \"Lisbon\", \"nights\": 4, \"broken\": [1, 2,}`

	got := FormatEmbeddedJSON(input)
	if !got.HasJSON {
		t.Error("HasJSON = false, want true")
	}
	if !strings.Contains(got.Text, "```text\n") {
		t.Errorf("Text missing text fallback fence: %q", got.Text)
	}
	if strings.Contains(got.Text, "```json") {
		t.Errorf("invalid span rendered as json: %q", got.Text)
	}
}

func TestFormatEmbeddedJSON_ExistingFenceUntouched(t *testing.T) {
	input := "Results:\n```json\n{\"key\": \"value\"}\n```\nDone."

	got := FormatEmbeddedJSON(input)
	if got.Text != input {
		t.Errorf("Text = %q, want unchanged input", got.Text)
	}
	if !got.HasJSON {
		t.Error("HasJSON = false, want true for existing json fence")
	}
}

func TestFormatEmbeddedJSON_NonJSONFence(t *testing.T) {
	input := "```text\nplain output\n```"

	got := FormatEmbeddedJSON(input)
	if got.Text != input {
		t.Errorf("Text = %q, want unchanged input", got.Text)
	}
	if got.HasJSON {
		t.Error("HasJSON = true, want false")
	}
}

func TestFormatEmbeddedJSON_UnclosedFenceProtected(t *testing.T) {
	input := "Start ```json\n" + escapedSearchRequest

	got := FormatEmbeddedJSON(input)
	if got.Text != input {
		t.Errorf("Text = %q, want unchanged input", got.Text)
	}
}

func TestFormatEmbeddedJSON_ProseBracesUntouched(t *testing.T) {
	input := "Use the {placeholder} syntax in templates, e.g. {name} or {destination}."

	got := FormatEmbeddedJSON(input)
	if got.Text != input {
		t.Errorf("Text = %q, want unchanged input", got.Text)
	}
	if got.HasJSON {
		t.Error("HasJSON = true, want false")
	}
}

func TestFormatEmbeddedJSON_Empty(t *testing.T) {
	got := FormatEmbeddedJSON("")
	if got.Text != "" || got.HasJSON {
		t.Errorf("FormatEmbeddedJSON(\"\") = %+v, want empty", got)
	}
}

func TestFormatEmbeddedJSON_MultipleSpans(t *testing.T) {
	input := "First " + escapedSearchRequest + " then " + escapedSearchRequest

	got := FormatEmbeddedJSON(input)
	if count := strings.Count(got.Text, "```json"); count != 2 {
		t.Errorf("json fence count = %d, want 2", count)
	}
}
