package internal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewAPIClient(t *testing.T) {
	client := NewAPIClient("https://api.example.com/", "secret")
	if client.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", client.BaseURL)
	}
	if client.APIKey != "secret" {
		t.Errorf("APIKey = %q, want secret", client.APIKey)
	}
	if client.HTTPClient.Timeout != DefaultRequestTimeout {
		t.Errorf("Timeout = %v, want %v", client.HTTPClient.Timeout, DefaultRequestTimeout)
	}
}

func TestAPIClient_GetConversation(t *testing.T) {
	var gotAuth, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/conversation/conv-1" {
			t.Errorf("path = %s, want /conversation/conv-1", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id": "conv-1", "title": "Trip planning", "messages": [{"id": "msg-1", "role": "user", "content": "Hello"}]}`))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "test-key")
	conv, err := client.GetConversation(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if conv.ID != "conv-1" || conv.Title != "Trip planning" {
		t.Errorf("conversation = %s %q, want conv-1 Trip planning", conv.ID, conv.Title)
	}
	if len(conv.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(conv.Messages))
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want Bearer test-key", gotAuth)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, want application/json", gotAccept)
	}
}

func TestAPIClient_GetConversation_BackfillsID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title": "No id in payload"}`))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "test-key")
	conv, err := client.GetConversation(context.Background(), "conv-7")
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if conv.ID != "conv-7" {
		t.Errorf("ID = %q, want the requested id backfilled", conv.ID)
	}
}

func TestAPIClient_GetConversation_EscapesID(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"id": "x"}`))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "test-key")
	if _, err := client.GetConversation(context.Background(), "support/conv 1"); err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if gotPath != "/conversation/support%2Fconv%201" {
		t.Errorf("path = %q, want the id percent-escaped", gotPath)
	}
}

func TestAPIClient_NoAuthHeaderWithoutKey(t *testing.T) {
	var hasAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth = r.Header["Authorization"]
		_, _ = w.Write([]byte(`{"id": "conv-1"}`))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "")
	if _, err := client.GetConversation(context.Background(), "conv-1"); err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if hasAuth {
		t.Error("Authorization header sent despite empty key")
	}
}

func TestAPIClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("  conversation not found\n"))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "test-key")
	_, err := client.GetConversation(context.Background(), "conv-1")
	if err == nil {
		t.Fatal("GetConversation() error = nil, want *APIError")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", apiErr.Status)
	}
	if apiErr.Body != "conversation not found" {
		t.Errorf("Body = %q, want the trimmed response body", apiErr.Body)
	}
	if apiErr.Endpoint != "/conversation/conv-1" {
		t.Errorf("Endpoint = %q, want /conversation/conv-1", apiErr.Endpoint)
	}
}

func TestAPIClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewAPIClient(server.URL, "test-key")
	_, err := client.GetConversation(context.Background(), "conv-1")
	if err == nil {
		t.Fatal("GetConversation() error = nil, want *NetworkError")
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %T, want *NetworkError", err)
	}
	if netErr.Endpoint != "/conversation/conv-1" {
		t.Errorf("Endpoint = %q, want /conversation/conv-1", netErr.Endpoint)
	}
	if netErr.Unwrap() == nil {
		t.Error("Unwrap() = nil, want the transport error")
	}
}

func TestAPIClient_ParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{truncated"))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "test-key")
	_, err := client.GetConversation(context.Background(), "conv-1")
	if err == nil {
		t.Fatal("GetConversation() error = nil, want *ParseError")
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("error = %T, want *ParseError", err)
	}
	if parseErr.Source != "/conversation/conv-1" {
		t.Errorf("Source = %q, want the endpoint path", parseErr.Source)
	}
}

func TestAPIClient_FetchThreads(t *testing.T) {
	var gotBody map[string]string
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/thread" {
			t.Errorf("path = %s, want /thread", r.URL.Path)
		}
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"threads": [{"id": "support/a1b2c3d4-e5f6-4a5b-8c7d-9e0f1a2b3c4d", "conversationId": "conv-1"}]}`))
	}))
	defer server.Close()

	r := TimeRange{
		Start: time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("CEST", 2*3600)),
		End:   time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
	}
	client := NewAPIClient(server.URL, "test-key")
	threads, err := client.FetchThreads(context.Background(), r)
	if err != nil {
		t.Fatalf("FetchThreads() error = %v", err)
	}
	if len(threads) != 1 || threads[0].ConversationID != "conv-1" {
		t.Errorf("threads = %+v, want one thread for conv-1", threads)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if gotBody["startTimestamp"] != "2024-05-01T08:00:00Z" {
		t.Errorf("startTimestamp = %q, want 2024-05-01T08:00:00Z", gotBody["startTimestamp"])
	}
	if gotBody["endTimestamp"] != "2024-05-02T10:00:00Z" {
		t.Errorf("endTimestamp = %q, want 2024-05-02T10:00:00Z", gotBody["endTimestamp"])
	}
}

func TestAPIClient_ProcessAttributes(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/attributes" {
			t.Errorf("path = %s, want /attributes", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"threadId": "support/a1b2c3d4-e5f6-4a5b-8c7d-9e0f1a2b3c4d", "attributes": {"sentiment": "positive"}}`))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "test-key")
	resp, err := client.ProcessAttributes(context.Background(), "support/a1b2c3d4-e5f6-4a5b-8c7d-9e0f1a2b3c4d")
	if err != nil {
		t.Fatalf("ProcessAttributes() error = %v", err)
	}
	if gotBody["threadId"] != "support/a1b2c3d4-e5f6-4a5b-8c7d-9e0f1a2b3c4d" {
		t.Errorf("request threadId = %q", gotBody["threadId"])
	}
	if resp.ThreadID != "support/a1b2c3d4-e5f6-4a5b-8c7d-9e0f1a2b3c4d" {
		t.Errorf("ThreadID = %q", resp.ThreadID)
	}
	if resp.Attributes["sentiment"] != "positive" {
		t.Errorf("Attributes = %v, want sentiment positive", resp.Attributes)
	}
}

func TestAPIClient_ProcessAttributesBulk(t *testing.T) {
	var gotBody struct {
		Threads []map[string]string `json:"threads"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/attributes/bulk" {
			t.Errorf("path = %s, want /attributes/bulk", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"results": [{"threadId": "a"}, {"threadId": "b"}]}`))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, "test-key")
	resp, err := client.ProcessAttributesBulk(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("ProcessAttributesBulk() error = %v", err)
	}
	if len(gotBody.Threads) != 2 || gotBody.Threads[0]["threadId"] != "a" || gotBody.Threads[1]["threadId"] != "b" {
		t.Errorf("request threads = %v, want a and b", gotBody.Threads)
	}
	if len(resp.Results) != 2 {
		t.Errorf("len(Results) = %d, want 2", len(resp.Results))
	}
}
