package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultRequestTimeout bounds a single API round trip.
const DefaultRequestTimeout = 30 * time.Second

// APIClient talks to the conversation backend. All requests carry the
// bearer token; non-2xx responses surface as *APIError and transport
// failures as *NetworkError.
type APIClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewAPIClient builds a client for the given backend.
func NewAPIClient(baseURL, apiKey string) *APIClient {
	return &APIClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: DefaultRequestTimeout},
	}
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", path, err)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	LogDebug("API request: %s %s", method, path)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &NetworkError{Endpoint: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Endpoint: path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Endpoint: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &ParseError{Source: path, Err: err}
		}
	}
	return nil
}

// GetConversation fetches a single conversation by id.
func (c *APIClient) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, http.MethodGet, "/conversation/"+url.PathEscape(id), nil, &conv); err != nil {
		return nil, err
	}
	if conv.ID == "" {
		conv.ID = id
	}
	return &conv, nil
}

// threadRequest is the POST /thread body.
type threadRequest struct {
	StartTimestamp string `json:"startTimestamp"`
	EndTimestamp   string `json:"endTimestamp"`
}

// FetchThreads fetches all threads created within the given range.
func (c *APIClient) FetchThreads(ctx context.Context, r TimeRange) ([]Thread, error) {
	req := threadRequest{
		StartTimestamp: r.Start.UTC().Format(time.RFC3339),
		EndTimestamp:   r.End.UTC().Format(time.RFC3339),
	}
	var resp ThreadsResponse
	if err := c.do(ctx, http.MethodPost, "/thread", req, &resp); err != nil {
		return nil, err
	}
	return resp.Threads, nil
}

// attributesRequest is the POST /attributes body.
type attributesRequest struct {
	ThreadID string `json:"threadId"`
}

// ProcessAttributes triggers attribute extraction for one thread.
func (c *APIClient) ProcessAttributes(ctx context.Context, threadID string) (*AttributesResponse, error) {
	var resp AttributesResponse
	if err := c.do(ctx, http.MethodPost, "/attributes", attributesRequest{ThreadID: threadID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// bulkAttributesRequest is the POST /attributes/bulk body.
type bulkAttributesRequest struct {
	Threads []attributesRequest `json:"threads"`
}

// ProcessAttributesBulk triggers attribute extraction for a batch of
// threads.
func (c *APIClient) ProcessAttributesBulk(ctx context.Context, threadIDs []string) (*BulkAttributesResponse, error) {
	req := bulkAttributesRequest{Threads: make([]attributesRequest, 0, len(threadIDs))}
	for _, id := range threadIDs {
		req.Threads = append(req.Threads, attributesRequest{ThreadID: id})
	}
	var resp BulkAttributesResponse
	if err := c.do(ctx, http.MethodPost, "/attributes/bulk", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
