package internal

import (
	"errors"
	"testing"
)

func TestAPIError(t *testing.T) {
	err := &APIError{Endpoint: "/thread", Status: 503, Body: "upstream unavailable"}
	want := "api error [/thread]: status 503: upstream unavailable"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := &APIError{Endpoint: "/thread", Status: 401}
	want = "api error [/thread]: status 401"
	if got := bare.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNetworkError(t *testing.T) {
	originalErr := errors.New("connection refused")
	err := &NetworkError{Endpoint: "/conversation/conv-1", Err: originalErr}

	want := "network error [/conversation/conv-1]: could not reach the conversation API (check connectivity and base URL): connection refused"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, originalErr) {
		t.Error("errors.Is() = false, want the transport error unwrapped")
	}
}

func TestSchemaError(t *testing.T) {
	err := &SchemaError{File: "upload.json", Field: "threads[0].id", Reason: "thread id is required"}
	want := "schema error [upload.json] field threads[0].id: thread id is required"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	noField := &SchemaError{File: "upload.json", Reason: "file is empty"}
	want = "schema error [upload.json]: file is empty"
	if got := noField.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestParseError(t *testing.T) {
	originalErr := errors.New("invalid JSON")
	err := &ParseError{Source: "store", Key: "uploaded-data", Err: originalErr}

	want := "parse error [store] uploaded-data: invalid JSON"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, originalErr) {
		t.Error("errors.Is() = false, want the original error unwrapped")
	}

	noKey := &ParseError{Source: "/thread", Err: originalErr}
	want = "parse error [/thread]: invalid JSON"
	if got := noKey.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestStorageError(t *testing.T) {
	originalErr := errors.New("database is locked")
	err := &StorageError{Key: "saved-chats", Op: "set", Err: originalErr}

	want := "storage error: set saved-chats: database is locked"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, originalErr) {
		t.Error("errors.Is() = false, want the original error unwrapped")
	}
}

func TestQuotaError(t *testing.T) {
	err := &QuotaError{Key: "thread-cache-staging", Size: 4200}
	want := "storage quota exceeded writing thread-cache-staging (4200 bytes)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	var quotaErr *QuotaError
	if !errors.As(error(err), &quotaErr) {
		t.Error("errors.As() = false, want *QuotaError")
	}
}

func TestExportError(t *testing.T) {
	originalErr := errors.New("write failed")
	err := &ExportError{Format: "jsonl", Path: "/output/file.jsonl", Err: originalErr}

	want := "export error [jsonl] /output/file.jsonl: write failed"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, originalErr) {
		t.Error("errors.Is() = false, want the original error unwrapped")
	}
}
