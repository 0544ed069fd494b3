package internal

import (
	"encoding/json"
	"errors"
	"sort"
	"time"
)

// Cache tuning. Entry counts and the byte budget bound what we are willing
// to persist; the coverage thresholds govern when a cached range may answer
// a request for a different range.
const (
	CacheTTL                 = 30 * time.Minute
	MaxCacheEntries          = 20
	MaxCacheBytes            = 4 * 1024 * 1024
	MaxConversationEntries   = 25
	PartialHitMinCoverage    = 0.10
	LenientHitMinCoverage    = 0.80
	LenientBoundaryTolerance = 5 * time.Minute
)

// TimeRange is a closed interval of wall-clock time.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the length of the range.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Contains reports whether other lies entirely within r.
func (r TimeRange) Contains(other TimeRange) bool {
	return !other.Start.Before(r.Start) && !other.End.After(r.End)
}

// Intersect returns the overlap of two ranges and whether one exists.
func (r TimeRange) Intersect(other TimeRange) (TimeRange, bool) {
	start := r.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := r.End
	if other.End.Before(end) {
		end = other.End
	}
	if end.Before(start) {
		return TimeRange{}, false
	}
	return TimeRange{Start: start, End: end}, true
}

// InRange reports whether t falls inside the closed interval.
func (r TimeRange) InRange(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// CacheHitKind classifies how a cached entry satisfied a lookup.
type CacheHitKind string

const (
	HitExact      CacheHitKind = "exact"
	HitContaining CacheHitKind = "containing"
	HitLenient    CacheHitKind = "lenient"
	HitPartial    CacheHitKind = "partial"
	HitMiss       CacheHitKind = "miss"
)

// CacheLookup is the outcome of a range lookup. On a partial hit Missing
// lists the subranges that still need to be fetched; on a miss it holds the
// whole requested range.
type CacheLookup struct {
	Kind      CacheHitKind
	Summaries []ThreadSummary
	Missing   []TimeRange
}

// CacheEntry is one cached fetch result: the range that was requested and
// the thread summaries it returned.
type CacheEntry struct {
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	Summaries []ThreadSummary `json:"summaries"`
	FetchedAt time.Time       `json:"fetchedAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Range returns the entry's covered interval.
func (e CacheEntry) Range() TimeRange {
	return TimeRange{Start: e.Start, End: e.End}
}

// ThreadRangeCache caches thread-summary fetches keyed by time range, backed
// by a KVStore. Persistence failures never break the fetch flow: they are
// logged and the cache degrades to a pass-through.
type ThreadRangeCache struct {
	store KVStore
	now   func() time.Time
}

// NewThreadRangeCache builds a cache over the given store.
func NewThreadRangeCache(store KVStore) *ThreadRangeCache {
	return &ThreadRangeCache{store: store, now: time.Now}
}

func (c *ThreadRangeCache) load() []CacheEntry {
	raw, ok, err := c.store.Get(KeyThreadCache)
	if err != nil {
		LogWarn("Failed to load thread cache: %v", err)
		return nil
	}
	if !ok {
		return nil
	}
	var entries []CacheEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		LogWarn("Corrupt thread cache, discarding: %v", err)
		_ = c.store.Delete(KeyThreadCache)
		return nil
	}
	return entries
}

func (c *ThreadRangeCache) persist(entries []CacheEntry) {
	if len(entries) == 0 {
		if err := c.store.Delete(KeyThreadCache); err != nil {
			LogWarn("Failed to clear thread cache: %v", err)
		}
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		LogWarn("Failed to serialize thread cache: %v", err)
		return
	}
	if err := c.store.Set(KeyThreadCache, string(raw)); err != nil {
		var quotaErr *QuotaError
		if errors.As(err, &quotaErr) {
			LogWarn("Storage quota exceeded while caching threads, clearing cache")
			_ = c.store.Delete(KeyThreadCache)
			return
		}
		LogWarn("Failed to persist thread cache: %v", err)
	}
}

// purgeExpired drops entries past their TTL. Returns the surviving entries
// and whether anything was removed.
func (c *ThreadRangeCache) purgeExpired(entries []CacheEntry) ([]CacheEntry, bool) {
	now := c.now()
	kept := entries[:0]
	for _, e := range entries {
		if now.Before(e.ExpiresAt) {
			kept = append(kept, e)
		}
	}
	return kept, len(kept) != len(entries)
}

// Lookup resolves a requested range against the cache. Resolution tries, in
// order: an exact range match, an entry containing the range, an entry
// covering at least 80% of it with one boundary within five minutes, and
// finally the best entry covering at least 10% of it. Anything less is a
// miss.
func (c *ThreadRangeCache) Lookup(r TimeRange) CacheLookup {
	entries, purged := c.purgeExpired(c.load())
	if purged {
		c.persist(entries)
	}

	var (
		containing   *CacheEntry
		bestLenient  *CacheEntry
		bestPartial  *CacheEntry
		lenientScore float64
		partialScore float64
	)
	for i := range entries {
		e := &entries[i]
		if e.Start.Equal(r.Start) && e.End.Equal(r.End) {
			LogDebug("Thread cache: exact hit for %s - %s", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
			return CacheLookup{Kind: HitExact, Summaries: e.Summaries}
		}
		if e.Range().Contains(r) {
			if containing == nil || e.FetchedAt.After(containing.FetchedAt) {
				containing = e
			}
			continue
		}
		overlap, ok := e.Range().Intersect(r)
		if !ok || r.Duration() <= 0 {
			continue
		}
		coverage := float64(overlap.Duration()) / float64(r.Duration())
		startDelta := absDuration(e.Start.Sub(r.Start))
		endDelta := absDuration(e.End.Sub(r.End))
		if coverage >= LenientHitMinCoverage && (startDelta <= LenientBoundaryTolerance || endDelta <= LenientBoundaryTolerance) {
			if coverage > lenientScore {
				bestLenient = e
				lenientScore = coverage
			}
			continue
		}
		if coverage >= PartialHitMinCoverage && coverage > partialScore {
			bestPartial = e
			partialScore = coverage
		}
	}

	if containing != nil {
		return CacheLookup{Kind: HitContaining, Summaries: filterSummaries(containing.Summaries, r)}
	}
	if bestLenient != nil {
		LogDebug("Thread cache: lenient hit (%.0f%% coverage)", lenientScore*100)
		return CacheLookup{Kind: HitLenient, Summaries: filterSummaries(bestLenient.Summaries, r)}
	}
	if bestPartial != nil {
		overlap, _ := bestPartial.Range().Intersect(r)
		var missing []TimeRange
		if overlap.Start.After(r.Start) {
			missing = append(missing, TimeRange{Start: r.Start, End: overlap.Start})
		}
		if overlap.End.Before(r.End) {
			missing = append(missing, TimeRange{Start: overlap.End, End: r.End})
		}
		LogDebug("Thread cache: partial hit (%.0f%% coverage, %d missing subranges)", partialScore*100, len(missing))
		return CacheLookup{Kind: HitPartial, Summaries: filterSummaries(bestPartial.Summaries, overlap), Missing: missing}
	}
	return CacheLookup{Kind: HitMiss, Missing: []TimeRange{r}}
}

// Store records a fetch result for the given range. Entries whose range the
// new entry fully covers are dropped; their data is superseded. The cache is
// then bounded by entry count and serialized size, oldest and largest
// entries going first.
func (c *ThreadRangeCache) Store(r TimeRange, summaries []ThreadSummary) {
	now := c.now()
	entry := CacheEntry{
		Start:     r.Start,
		End:       r.End,
		Summaries: dedupSummaries(summaries),
		FetchedAt: now,
		ExpiresAt: now.Add(CacheTTL),
	}
	sort.SliceStable(entry.Summaries, func(i, j int) bool {
		return entry.Summaries[i].CreatedAt.Time.After(entry.Summaries[j].CreatedAt.Time)
	})

	entries, _ := c.purgeExpired(c.load())
	kept := entries[:0]
	for _, e := range entries {
		if r.Contains(e.Range()) {
			continue
		}
		kept = append(kept, e)
	}
	entries = append(kept, entry)

	// Oldest entries go first when over the count cap.
	if len(entries) > MaxCacheEntries {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].FetchedAt.Before(entries[j].FetchedAt)
		})
		entries = entries[len(entries)-MaxCacheEntries:]
	}

	// Largest entries go first when over the byte budget.
	for len(entries) > 1 {
		raw, err := json.Marshal(entries)
		if err != nil || len(raw) <= MaxCacheBytes {
			break
		}
		largest := 0
		largestSize := 0
		for i, e := range entries {
			size := len(e.Summaries)
			if size > largestSize {
				largest = i
				largestSize = size
			}
		}
		entries = append(entries[:largest], entries[largest+1:]...)
	}
	if raw, err := json.Marshal(entries); err == nil && len(raw) > MaxCacheBytes {
		LogWarn("Thread cache entry exceeds byte budget, clearing cache")
		entries = nil
	}

	c.persist(entries)
}

// Clear drops every cached range.
func (c *ThreadRangeCache) Clear() error {
	return c.store.Delete(KeyThreadCache)
}

// Entries returns the live (non-expired) cache contents, for inspection.
func (c *ThreadRangeCache) Entries() []CacheEntry {
	entries, _ := c.purgeExpired(c.load())
	return entries
}

func filterSummaries(summaries []ThreadSummary, r TimeRange) []ThreadSummary {
	filtered := make([]ThreadSummary, 0, len(summaries))
	for _, s := range summaries {
		if s.CreatedAt.IsZero() || r.InRange(s.CreatedAt.Time) {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

func dedupSummaries(summaries []ThreadSummary) []ThreadSummary {
	seen := make(map[string]bool, len(summaries))
	out := make([]ThreadSummary, 0, len(summaries))
	for _, s := range summaries {
		if s.ID != "" && seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// conversationCacheEntry wraps one cached full conversation.
type conversationCacheEntry struct {
	Conversation Conversation `json:"conversation"`
	FetchedAt    time.Time    `json:"fetchedAt"`
	ExpiresAt    time.Time    `json:"expiresAt"`
}

// ConversationCache caches full conversations by id with the same TTL as the
// range cache and a small entry cap.
type ConversationCache struct {
	store KVStore
	now   func() time.Time
}

// NewConversationCache builds a conversation cache over the given store.
func NewConversationCache(store KVStore) *ConversationCache {
	return &ConversationCache{store: store, now: time.Now}
}

func (c *ConversationCache) load() map[string]conversationCacheEntry {
	raw, ok, err := c.store.Get(KeyConversationCache)
	if err != nil {
		LogWarn("Failed to load conversation cache: %v", err)
		return map[string]conversationCacheEntry{}
	}
	if !ok {
		return map[string]conversationCacheEntry{}
	}
	var entries map[string]conversationCacheEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		LogWarn("Corrupt conversation cache, discarding: %v", err)
		_ = c.store.Delete(KeyConversationCache)
		return map[string]conversationCacheEntry{}
	}
	return entries
}

func (c *ConversationCache) persist(entries map[string]conversationCacheEntry) {
	if len(entries) == 0 {
		if err := c.store.Delete(KeyConversationCache); err != nil {
			LogWarn("Failed to clear conversation cache: %v", err)
		}
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		LogWarn("Failed to serialize conversation cache: %v", err)
		return
	}
	if err := c.store.Set(KeyConversationCache, string(raw)); err != nil {
		var quotaErr *QuotaError
		if errors.As(err, &quotaErr) {
			LogWarn("Storage quota exceeded while caching conversations, clearing cache")
			_ = c.store.Delete(KeyConversationCache)
			return
		}
		LogWarn("Failed to persist conversation cache: %v", err)
	}
}

// Get returns the cached conversation for id, if present and fresh.
func (c *ConversationCache) Get(id string) (*Conversation, bool) {
	entries := c.load()
	entry, ok := entries[id]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		delete(entries, id)
		c.persist(entries)
		return nil, false
	}
	conv := entry.Conversation
	return &conv, true
}

// Put caches a conversation, evicting the oldest entries beyond the cap.
func (c *ConversationCache) Put(conv *Conversation) {
	if conv == nil || conv.ID == "" {
		return
	}
	now := c.now()
	entries := c.load()
	for id, e := range entries {
		if !now.Before(e.ExpiresAt) {
			delete(entries, id)
		}
	}
	entries[conv.ID] = conversationCacheEntry{
		Conversation: *conv,
		FetchedAt:    now,
		ExpiresAt:    now.Add(CacheTTL),
	}
	for len(entries) > MaxConversationEntries {
		oldest := ""
		var oldestAt time.Time
		for id, e := range entries {
			if oldest == "" || e.FetchedAt.Before(oldestAt) {
				oldest = id
				oldestAt = e.FetchedAt
			}
		}
		delete(entries, oldest)
	}
	c.persist(entries)
}

// Clear drops every cached conversation.
func (c *ConversationCache) Clear() error {
	return c.store.Delete(KeyConversationCache)
}

// Size returns the number of live cached conversations.
func (c *ConversationCache) Size() int {
	now := c.now()
	count := 0
	for _, e := range c.load() {
		if now.Before(e.ExpiresAt) {
			count++
		}
	}
	return count
}
