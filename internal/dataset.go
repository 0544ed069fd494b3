package internal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// DataSource names where conversation data is coming from. Local mode is
// entered by uploading payloads and guarantees the network is never called.
type DataSource string

const (
	SourceRemote DataSource = "remote"
	SourceLocal  DataSource = "local"
)

// ErrStaleFetch marks a fetch result that was superseded by a newer request
// for the same target before it completed. Callers discard the result.
var ErrStaleFetch = errors.New("fetch superseded by a newer request")

// Fetcher is the slice of the API client the dataset depends on.
type Fetcher interface {
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	FetchThreads(ctx context.Context, r TimeRange) ([]Thread, error)
	ProcessAttributes(ctx context.Context, threadID string) (*AttributesResponse, error)
	ProcessAttributesBulk(ctx context.Context, threadIDs []string) (*BulkAttributesResponse, error)
}

// Dataset is the data access layer: it decides between local uploaded data
// and the remote API, routes remote reads through the caches, and merges
// annotations into everything it returns.
type Dataset struct {
	store       KVStore
	fetcher     Fetcher
	importer    *Importer
	threadCache *ThreadRangeCache
	convCache   *ConversationCache
	annotations *Annotations

	mu          sync.Mutex
	generations map[string]uint64
}

// NewDataset builds a dataset over the given store and fetcher.
func NewDataset(store KVStore, fetcher Fetcher) *Dataset {
	return &Dataset{
		store:       store,
		fetcher:     fetcher,
		importer:    NewImporter(store),
		threadCache: NewThreadRangeCache(store),
		convCache:   NewConversationCache(store),
		annotations: NewAnnotations(store),
		generations: make(map[string]uint64),
	}
}

// Importer exposes the upload layer.
func (d *Dataset) Importer() *Importer { return d.importer }

// Annotations exposes the saved/notes/viewed layer.
func (d *Dataset) Annotations() *Annotations { return d.annotations }

// ThreadCache exposes the range cache, for inspection and clearing.
func (d *Dataset) ThreadCache() *ThreadRangeCache { return d.threadCache }

// ConversationCache exposes the conversation cache.
func (d *Dataset) ConversationCache() *ConversationCache { return d.convCache }

// beginFetch advances the generation counter for a fetch target and returns
// the new generation.
func (d *Dataset) beginFetch(target string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generations[target]++
	return d.generations[target]
}

// isCurrent reports whether gen is still the newest generation for target.
func (d *Dataset) isCurrent(target string, gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generations[target] == gen
}

// Source reports whether reads are served locally or from the remote API.
func (d *Dataset) Source() (DataSource, error) {
	data, err := d.importer.LoadUploadedData()
	if err != nil {
		return SourceRemote, err
	}
	if !data.IsEmpty() {
		return SourceLocal, nil
	}
	return SourceRemote, nil
}

// FetchThreadSummaries returns summaries of the threads created in the
// range. In local mode the uploaded blob is the only source. In remote mode
// the range cache is consulted first; on a partial hit only the missing
// subranges are fetched, and a miss fetches the whole range. Every network
// result is cached before being returned.
func (d *Dataset) FetchThreadSummaries(ctx context.Context, r TimeRange) ([]ThreadSummary, DataSource, error) {
	source, err := d.Source()
	if err != nil {
		return nil, source, err
	}
	if source == SourceLocal {
		summaries, err := d.localThreadSummaries(r)
		return summaries, SourceLocal, err
	}

	gen := d.beginFetch("thread-range")
	lookup := d.threadCache.Lookup(r)
	switch lookup.Kind {
	case HitExact, HitContaining, HitLenient:
		LogDebug("Thread range served from cache (%s hit)", lookup.Kind)
		return lookup.Summaries, SourceRemote, nil

	case HitPartial:
		combined := append([]ThreadSummary{}, lookup.Summaries...)
		for _, missing := range lookup.Missing {
			threads, err := d.fetcher.FetchThreads(ctx, missing)
			if err != nil {
				return nil, SourceRemote, err
			}
			combined = append(combined, SummarizeThreads(threads)...)
		}
		if !d.isCurrent("thread-range", gen) {
			return nil, SourceRemote, ErrStaleFetch
		}
		combined = dedupSummaries(combined)
		d.threadCache.Store(r, combined)
		return filterSummaries(combined, r), SourceRemote, nil

	default:
		threads, err := d.fetcher.FetchThreads(ctx, r)
		if err != nil {
			return nil, SourceRemote, err
		}
		if !d.isCurrent("thread-range", gen) {
			return nil, SourceRemote, ErrStaleFetch
		}
		summaries := SummarizeThreads(threads)
		d.threadCache.Store(r, summaries)
		return summaries, SourceRemote, nil
	}
}

// RefreshThreadRange bypasses the cache, fetches the range fresh and stores
// the result. Used by scheduled refreshes.
func (d *Dataset) RefreshThreadRange(ctx context.Context, r TimeRange) ([]ThreadSummary, error) {
	source, err := d.Source()
	if err != nil {
		return nil, err
	}
	if source == SourceLocal {
		return d.localThreadSummaries(r)
	}
	gen := d.beginFetch("thread-range")
	threads, err := d.fetcher.FetchThreads(ctx, r)
	if err != nil {
		return nil, err
	}
	if !d.isCurrent("thread-range", gen) {
		return nil, ErrStaleFetch
	}
	summaries := SummarizeThreads(threads)
	d.threadCache.Store(r, summaries)
	return summaries, nil
}

func (d *Dataset) localThreadSummaries(r TimeRange) ([]ThreadSummary, error) {
	data, err := d.importer.LoadUploadedData()
	if err != nil {
		return nil, err
	}
	summaries := SummarizeThreads(data.Threads)
	return filterSummaries(summaries, r), nil
}

// GetConversation returns one conversation with annotations applied. Local
// mode reads the uploaded blob; remote mode goes through the conversation
// cache before touching the network.
func (d *Dataset) GetConversation(ctx context.Context, id string) (*Conversation, DataSource, error) {
	source, err := d.Source()
	if err != nil {
		return nil, source, err
	}

	var conv *Conversation
	if source == SourceLocal {
		conv, err = d.localConversation(id)
		if err != nil {
			return nil, SourceLocal, err
		}
	} else {
		if cached, ok := d.convCache.Get(id); ok {
			LogDebug("Conversation %s served from cache", id)
			conv = cached
		} else {
			gen := d.beginFetch("conversation:" + id)
			fetched, err := d.fetcher.GetConversation(ctx, id)
			if err != nil {
				return nil, SourceRemote, err
			}
			if !d.isCurrent("conversation:"+id, gen) {
				return nil, SourceRemote, ErrStaleFetch
			}
			d.convCache.Put(fetched)
			conv = fetched
		}
	}

	if err := d.annotations.Apply([]*Conversation{conv}); err != nil {
		LogWarn("Failed to apply annotations to %s: %v", id, err)
	}
	return conv, source, nil
}

func (d *Dataset) localConversation(id string) (*Conversation, error) {
	data, err := d.importer.LoadUploadedData()
	if err != nil {
		return nil, err
	}
	for i := range data.Conversations {
		if data.Conversations[i].ID == id {
			conv := data.Conversations[i]
			return &conv, nil
		}
	}
	for _, conv := range assembleFromThreads(data.Threads) {
		if conv.ID == id {
			return conv, nil
		}
	}
	return nil, fmt.Errorf("conversation %s not found in uploaded data", id)
}

// Conversations returns the local view of all conversations: uploaded
// conversation payloads plus conversations assembled from uploaded threads,
// newest first, with annotations applied. Remote mode has no list endpoint,
// so this errors unless local data is present.
func (d *Dataset) Conversations() ([]*Conversation, error) {
	data, err := d.importer.LoadUploadedData()
	if err != nil {
		return nil, err
	}
	if data.IsEmpty() {
		return nil, errors.New("no uploaded data: import payloads first or fetch by id/range")
	}

	byID := make(map[string]*Conversation)
	var convs []*Conversation
	for i := range data.Conversations {
		conv := data.Conversations[i]
		byID[conv.ID] = &conv
		convs = append(convs, &conv)
	}
	for _, assembled := range assembleFromThreads(data.Threads) {
		if _, exists := byID[assembled.ID]; exists {
			continue
		}
		convs = append(convs, assembled)
	}

	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].CreatedAt.Time.After(convs[j].CreatedAt.Time)
	})
	if err := d.annotations.Apply(convs); err != nil {
		LogWarn("Failed to apply annotations: %v", err)
	}
	return convs, nil
}

// assembleFromThreads groups loose threads into synthetic conversations.
// Threads without a conversation id stand alone under their own id.
func assembleFromThreads(threads []Thread) []*Conversation {
	groups := make(map[string]*Conversation)
	var order []string
	for _, t := range threads {
		id := t.ConversationID
		if id == "" {
			id = t.ID
		}
		conv, ok := groups[id]
		if !ok {
			conv = &Conversation{ID: id, CreatedAt: t.CreatedAt}
			groups[id] = conv
			order = append(order, id)
		}
		if !t.CreatedAt.IsZero() && (conv.CreatedAt.IsZero() || t.CreatedAt.Time.Before(conv.CreatedAt.Time)) {
			conv.CreatedAt = t.CreatedAt
		}
		conv.Messages = append(conv.Messages, t.Messages...)
		conv.ThreadIDs = append(conv.ThreadIDs, t.ID)
	}
	convs := make([]*Conversation, 0, len(order))
	for _, id := range order {
		convs = append(convs, groups[id])
	}
	return convs
}

// ProcessAttributes triggers attribute extraction for one thread. Requires
// remote mode.
func (d *Dataset) ProcessAttributes(ctx context.Context, threadID string) (*AttributesResponse, error) {
	if err := d.requireRemote(); err != nil {
		return nil, err
	}
	return d.fetcher.ProcessAttributes(ctx, threadID)
}

// ProcessAttributesBulk triggers attribute extraction for a batch of
// threads. Requires remote mode.
func (d *Dataset) ProcessAttributesBulk(ctx context.Context, threadIDs []string) (*BulkAttributesResponse, error) {
	if err := d.requireRemote(); err != nil {
		return nil, err
	}
	return d.fetcher.ProcessAttributesBulk(ctx, threadIDs)
}

func (d *Dataset) requireRemote() error {
	source, err := d.Source()
	if err != nil {
		return err
	}
	if source == SourceLocal {
		return errors.New("attribute processing requires the remote API: uploaded data is active, clear it first")
	}
	return nil
}
