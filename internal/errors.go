package internal

import "fmt"

// APIError represents a non-success response from the conversation API
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("api error [%s]: status %d: %s", e.Endpoint, e.Status, e.Body)
	}
	return fmt.Sprintf("api error [%s]: status %d", e.Endpoint, e.Status)
}

// NetworkError represents a transport-level failure reaching the API
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error [%s]: could not reach the conversation API (check connectivity and base URL): %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// SchemaError represents uploaded data failing structural validation
type SchemaError struct {
	File   string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema error [%s] field %s: %s", e.File, e.Field, e.Reason)
	}
	return fmt.Sprintf("schema error [%s]: %s", e.File, e.Reason)
}

// ParseError represents errors parsing data
type ParseError struct {
	Source string // "upload", "store", "embedded-json"
	Key    string // file path or storage key
	Err    error
}

func (e *ParseError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("parse error [%s] %s: %v", e.Source, e.Key, e.Err)
	}
	return fmt.Sprintf("parse error [%s]: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StorageError represents errors accessing the local store
type StorageError struct {
	Key string
	Op  string // "open", "get", "set", "delete"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// QuotaError represents a write rejected because the store budget is exhausted
type QuotaError struct {
	Key  string
	Size int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("storage quota exceeded writing %s (%d bytes)", e.Key, e.Size)
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
