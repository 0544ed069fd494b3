package internal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tkrueger/chatlens/testutil"
)

// fakeFetcher serves canned data and counts calls, standing in for the API
// client.
type fakeFetcher struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
	threads       []Thread
	convCalls     int
	threadCalls   int
	threadRanges  []TimeRange
	attrCalls     int
	bulkCalls     int
	onFetch       func()
}

func (f *fakeFetcher) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	f.mu.Lock()
	f.convCalls++
	f.mu.Unlock()
	if f.onFetch != nil {
		f.onFetch()
	}
	conv, ok := f.conversations[id]
	if !ok {
		return nil, fmt.Errorf("no conversation %s", id)
	}
	return conv, nil
}

func (f *fakeFetcher) FetchThreads(ctx context.Context, r TimeRange) ([]Thread, error) {
	f.mu.Lock()
	f.threadCalls++
	f.threadRanges = append(f.threadRanges, r)
	f.mu.Unlock()
	if f.onFetch != nil {
		f.onFetch()
	}
	var out []Thread
	for _, t := range f.threads {
		if !t.CreatedAt.Time.Before(r.Start) && !t.CreatedAt.Time.After(r.End) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeFetcher) ProcessAttributes(ctx context.Context, threadID string) (*AttributesResponse, error) {
	f.mu.Lock()
	f.attrCalls++
	f.mu.Unlock()
	return &AttributesResponse{ThreadID: threadID}, nil
}

func (f *fakeFetcher) ProcessAttributesBulk(ctx context.Context, threadIDs []string) (*BulkAttributesResponse, error) {
	f.mu.Lock()
	f.bulkCalls++
	f.mu.Unlock()
	resp := &BulkAttributesResponse{}
	for _, id := range threadIDs {
		resp.Results = append(resp.Results, AttributesResponse{ThreadID: id})
	}
	return resp, nil
}

func sortedSummaryIDs(summaries []ThreadSummary) []string {
	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestDataset_Source(t *testing.T) {
	ds := NewDataset(NewMemStore(), &fakeFetcher{})

	source, err := ds.Source()
	if err != nil {
		t.Fatalf("Source() error = %v", err)
	}
	if source != SourceRemote {
		t.Errorf("Source() = %s, want %s", source, SourceRemote)
	}

	if _, err := ds.Importer().ImportPayload("conv.json", testutil.ConversationJSON(t, "conv-1", "Title")); err != nil {
		t.Fatalf("ImportPayload() error = %v", err)
	}
	source, err = ds.Source()
	if err != nil {
		t.Fatalf("Source() error = %v", err)
	}
	if source != SourceLocal {
		t.Errorf("Source() = %s, want %s after upload", source, SourceLocal)
	}
}

func TestDataset_FetchThreadSummaries_MissThenHit(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakeFetcher{threads: []Thread{
		CreateTestThread("thread-a", "conv-1", base.Add(time.Hour)),
		CreateTestThread("thread-b", "conv-2", base.Add(5*time.Hour)),
	}}
	ds := NewDataset(NewMemStore(), fake)
	r := TimeRange{Start: base, End: base.Add(10 * time.Hour)}

	summaries, source, err := ds.FetchThreadSummaries(context.Background(), r)
	if err != nil {
		t.Fatalf("FetchThreadSummaries() error = %v", err)
	}
	if source != SourceRemote {
		t.Errorf("source = %s, want %s", source, SourceRemote)
	}
	if len(summaries) != 2 {
		t.Fatalf("len(summaries) = %d, want 2", len(summaries))
	}
	if fake.threadCalls != 1 {
		t.Fatalf("threadCalls = %d, want 1", fake.threadCalls)
	}

	// Same range again is served from the cache.
	summaries, _, err = ds.FetchThreadSummaries(context.Background(), r)
	if err != nil {
		t.Fatalf("FetchThreadSummaries(cached) error = %v", err)
	}
	if len(summaries) != 2 {
		t.Errorf("len(summaries) = %d, want 2", len(summaries))
	}
	if fake.threadCalls != 1 {
		t.Errorf("threadCalls = %d, want the cache to answer", fake.threadCalls)
	}
}

func TestDataset_FetchThreadSummaries_PartialFetchesMissing(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakeFetcher{threads: []Thread{
		CreateTestThread("thread-a", "conv-1", base.Add(time.Hour)),
		CreateTestThread("thread-b", "conv-2", base.Add(5*time.Hour)),
	}}
	ds := NewDataset(NewMemStore(), fake)

	small := TimeRange{Start: base, End: base.Add(2 * time.Hour)}
	if _, _, err := ds.FetchThreadSummaries(context.Background(), small); err != nil {
		t.Fatalf("FetchThreadSummaries(small) error = %v", err)
	}

	full := TimeRange{Start: base, End: base.Add(10 * time.Hour)}
	summaries, _, err := ds.FetchThreadSummaries(context.Background(), full)
	if err != nil {
		t.Fatalf("FetchThreadSummaries(full) error = %v", err)
	}
	if got := sortedSummaryIDs(summaries); len(got) != 2 || got[0] != "thread-a" || got[1] != "thread-b" {
		t.Errorf("summaries = %v, want thread-a and thread-b", got)
	}
	if fake.threadCalls != 2 {
		t.Fatalf("threadCalls = %d, want 2", fake.threadCalls)
	}

	// Only the uncovered tail is fetched.
	missing := fake.threadRanges[1]
	if !missing.Start.Equal(base.Add(2*time.Hour)) || !missing.End.Equal(base.Add(10*time.Hour)) {
		t.Errorf("second fetch range = %v..%v, want the missing tail", missing.Start, missing.End)
	}

	// The combined result was stored, so the full range now hits exactly.
	if _, _, err := ds.FetchThreadSummaries(context.Background(), full); err != nil {
		t.Fatalf("FetchThreadSummaries(full again) error = %v", err)
	}
	if fake.threadCalls != 2 {
		t.Errorf("threadCalls = %d, want no further fetches", fake.threadCalls)
	}
}

func TestDataset_FetchThreadSummaries_LocalMode(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakeFetcher{}
	ds := NewDataset(NewMemStore(), fake)

	payload := testutil.ThreadsJSON(t,
		testutil.ThreadJSON(testutil.ThreadID("support"), "conv-1", base.Add(time.Hour)),
		testutil.ThreadJSON(testutil.ThreadID("travel"), "conv-2", base.Add(48*time.Hour)),
	)
	if _, err := ds.Importer().ImportPayload("threads.json", payload); err != nil {
		t.Fatalf("ImportPayload() error = %v", err)
	}

	r := TimeRange{Start: base, End: base.Add(10 * time.Hour)}
	summaries, source, err := ds.FetchThreadSummaries(context.Background(), r)
	if err != nil {
		t.Fatalf("FetchThreadSummaries() error = %v", err)
	}
	if source != SourceLocal {
		t.Errorf("source = %s, want %s", source, SourceLocal)
	}
	if len(summaries) != 1 || summaries[0].ID != testutil.ThreadID("support") {
		t.Errorf("summaries = %v, want only the in-range thread", sortedSummaryIDs(summaries))
	}
	if fake.threadCalls != 0 {
		t.Errorf("threadCalls = %d, want no network in local mode", fake.threadCalls)
	}
}

func TestDataset_RefreshThreadRangeBypassesCache(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakeFetcher{threads: []Thread{
		CreateTestThread("thread-a", "conv-1", base.Add(time.Hour)),
	}}
	ds := NewDataset(NewMemStore(), fake)
	r := TimeRange{Start: base, End: base.Add(10 * time.Hour)}

	if _, _, err := ds.FetchThreadSummaries(context.Background(), r); err != nil {
		t.Fatalf("FetchThreadSummaries() error = %v", err)
	}
	if fake.threadCalls != 1 {
		t.Fatalf("threadCalls = %d, want 1", fake.threadCalls)
	}

	summaries, err := ds.RefreshThreadRange(context.Background(), r)
	if err != nil {
		t.Fatalf("RefreshThreadRange() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Errorf("len(summaries) = %d, want 1", len(summaries))
	}
	if fake.threadCalls != 2 {
		t.Errorf("threadCalls = %d, want the refresh to refetch", fake.threadCalls)
	}
}

func TestDataset_FetchThreadSummaries_Stale(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	fake := &fakeFetcher{}
	ds := NewDataset(NewMemStore(), fake)
	// A newer request for the same target starts while the fetch is in
	// flight, so this result must be discarded.
	fake.onFetch = func() { ds.beginFetch("thread-range") }

	r := TimeRange{Start: base, End: base.Add(time.Hour)}
	_, _, err := ds.FetchThreadSummaries(context.Background(), r)
	if !errors.Is(err, ErrStaleFetch) {
		t.Errorf("error = %v, want ErrStaleFetch", err)
	}
}

func TestDataset_GetConversation_RemoteCaches(t *testing.T) {
	fake := &fakeFetcher{conversations: map[string]*Conversation{
		"conv-1": CreateTestConversation("conv-1", 2),
	}}
	ds := NewDataset(NewMemStore(), fake)
	if err := ds.Annotations().SetSaved("conv-1", true); err != nil {
		t.Fatalf("SetSaved() error = %v", err)
	}

	conv, source, err := ds.GetConversation(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if source != SourceRemote {
		t.Errorf("source = %s, want %s", source, SourceRemote)
	}
	if conv.ID != "conv-1" || len(conv.Messages) != 2 {
		t.Errorf("conversation = %s with %d messages", conv.ID, len(conv.Messages))
	}
	if !conv.Saved {
		t.Error("Saved = false, want annotations applied")
	}

	conv, _, err = ds.GetConversation(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("GetConversation(cached) error = %v", err)
	}
	if conv.ID != "conv-1" {
		t.Errorf("cached conversation = %s", conv.ID)
	}
	if fake.convCalls != 1 {
		t.Errorf("convCalls = %d, want the cache to answer the second read", fake.convCalls)
	}
}

func TestDataset_GetConversation_Local(t *testing.T) {
	createdAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fake := &fakeFetcher{}
	ds := NewDataset(NewMemStore(), fake)

	if _, err := ds.Importer().ImportPayload("conv.json",
		testutil.ConversationJSON(t, "conv-1", "Uploaded",
			testutil.MessageJSON("msg-1", "user", "Hello", createdAt))); err != nil {
		t.Fatalf("ImportPayload(conv) error = %v", err)
	}
	if _, err := ds.Importer().ImportPayload("threads.json",
		testutil.ThreadsJSON(t,
			testutil.ThreadJSON(testutil.ThreadID("support"), "conv-2", createdAt,
				testutil.MessageJSON("msg-2", "user", "From thread", createdAt)))); err != nil {
		t.Fatalf("ImportPayload(threads) error = %v", err)
	}

	conv, source, err := ds.GetConversation(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("GetConversation(conv-1) error = %v", err)
	}
	if source != SourceLocal || conv.Title != "Uploaded" {
		t.Errorf("conv-1 = %s %q, want local Uploaded", source, conv.Title)
	}

	conv, _, err = ds.GetConversation(context.Background(), "conv-2")
	if err != nil {
		t.Fatalf("GetConversation(conv-2) error = %v", err)
	}
	if len(conv.ThreadIDs) != 1 || conv.ThreadIDs[0] != testutil.ThreadID("support") {
		t.Errorf("conv-2.ThreadIDs = %v, want the assembling thread", conv.ThreadIDs)
	}
	if len(conv.Messages) != 1 {
		t.Errorf("len(conv-2.Messages) = %d, want 1", len(conv.Messages))
	}

	if _, _, err := ds.GetConversation(context.Background(), "conv-9"); err == nil ||
		!strings.Contains(err.Error(), "not found in uploaded data") {
		t.Errorf("GetConversation(conv-9) error = %v, want not found", err)
	}
	if fake.convCalls != 0 {
		t.Errorf("convCalls = %d, want no network in local mode", fake.convCalls)
	}
}

func TestDataset_Conversations(t *testing.T) {
	ds := NewDataset(NewMemStore(), &fakeFetcher{})

	if _, err := ds.Conversations(); err == nil ||
		!strings.Contains(err.Error(), "no uploaded data") {
		t.Fatalf("Conversations() error = %v, want no uploaded data", err)
	}

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if _, err := ds.Importer().ImportPayload("threads.json",
		testutil.ThreadsJSON(t,
			testutil.ThreadJSON(testutil.ThreadID("support"), "conv-a", base.Add(24*time.Hour)),
			testutil.ThreadJSON(testutil.ThreadID("travel"), "conv-b", base.Add(48*time.Hour)))); err != nil {
		t.Fatalf("ImportPayload(threads) error = %v", err)
	}
	if _, err := ds.Importer().ImportPayload("conv.json",
		testutil.ConversationJSON(t, "conv-a", "Uploaded A")); err != nil {
		t.Fatalf("ImportPayload(conv) error = %v", err)
	}
	if err := ds.Annotations().SetNote("conv-b", "check pricing"); err != nil {
		t.Fatalf("SetNote() error = %v", err)
	}

	convs, err := ds.Conversations()
	if err != nil {
		t.Fatalf("Conversations() error = %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("len(convs) = %d, want the uploaded payload to shadow its assembled twin", len(convs))
	}
	// Newest first; the uploaded conv-a has no timestamp and sorts last.
	if convs[0].ID != "conv-b" || convs[1].ID != "conv-a" {
		t.Errorf("order = [%s %s], want [conv-b conv-a]", convs[0].ID, convs[1].ID)
	}
	if convs[1].Title != "Uploaded A" || len(convs[1].ThreadIDs) != 0 {
		t.Errorf("conv-a = %q with threads %v, want the uploaded payload", convs[1].Title, convs[1].ThreadIDs)
	}
	if convs[0].Notes != "check pricing" {
		t.Errorf("conv-b.Notes = %q, want annotations applied", convs[0].Notes)
	}
}

func TestAssembleFromThreads(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	threads := []Thread{
		CreateTestThread("thread-1", "conv-1", base.Add(time.Hour),
			CreateTestMessage("msg-1", "user", "later thread", base.Add(time.Hour))),
		CreateTestThread("thread-2", "conv-1", base,
			CreateTestMessage("msg-2", "assistant", "earlier thread", base)),
		CreateTestThread("thread-3", "", base.Add(2*time.Hour)),
	}

	convs := assembleFromThreads(threads)
	if len(convs) != 2 {
		t.Fatalf("len(convs) = %d, want 2", len(convs))
	}

	first := convs[0]
	if first.ID != "conv-1" {
		t.Errorf("ID = %s, want conv-1", first.ID)
	}
	if !first.CreatedAt.Time.Equal(base) {
		t.Errorf("CreatedAt = %v, want the earliest thread time", first.CreatedAt.Time)
	}
	if len(first.Messages) != 2 || len(first.ThreadIDs) != 2 {
		t.Errorf("messages = %d threads = %d, want both threads merged", len(first.Messages), len(first.ThreadIDs))
	}

	// A thread without a conversation back-reference stands alone.
	if convs[1].ID != "thread-3" {
		t.Errorf("convs[1].ID = %s, want thread-3", convs[1].ID)
	}
}

func TestDataset_ProcessAttributes(t *testing.T) {
	fake := &fakeFetcher{}
	ds := NewDataset(NewMemStore(), fake)

	resp, err := ds.ProcessAttributes(context.Background(), "support/a1b2c3d4-e5f6-4a5b-8c7d-9e0f1a2b3c4d")
	if err != nil {
		t.Fatalf("ProcessAttributes() error = %v", err)
	}
	if resp.ThreadID != "support/a1b2c3d4-e5f6-4a5b-8c7d-9e0f1a2b3c4d" {
		t.Errorf("ThreadID = %q", resp.ThreadID)
	}

	bulk, err := ds.ProcessAttributesBulk(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("ProcessAttributesBulk() error = %v", err)
	}
	if len(bulk.Results) != 2 {
		t.Errorf("len(Results) = %d, want 2", len(bulk.Results))
	}

	// Local mode blocks attribute processing.
	if _, err := ds.Importer().ImportPayload("conv.json", testutil.ConversationJSON(t, "conv-1", "Title")); err != nil {
		t.Fatalf("ImportPayload() error = %v", err)
	}
	if _, err := ds.ProcessAttributes(context.Background(), "x"); err == nil ||
		!strings.Contains(err.Error(), "requires the remote API") {
		t.Errorf("ProcessAttributes() error = %v, want remote required", err)
	}
	if _, err := ds.ProcessAttributesBulk(context.Background(), []string{"x"}); err == nil ||
		!strings.Contains(err.Error(), "requires the remote API") {
		t.Errorf("ProcessAttributesBulk() error = %v, want remote required", err)
	}
}
