package internal

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// SessionTimeoutGap is the inter-message gap treated as a session timeout.
const SessionTimeoutGap = 30 * time.Second

// continuationPattern matches user utterances that resume a stalled session;
// gaps before them are user pauses, not timeouts.
var continuationPattern = regexp.MustCompile(`(?i)^(continue|go on|keep going|proceed)$`)

// errorIndicatorPatterns mark a system message as reporting a failure.
var errorIndicatorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Agent execution error`),
	regexp.MustCompile(`(?i)Error:`),
	regexp.MustCompile(`(?i)Failed:`),
	regexp.MustCompile(`(?i)Exception:`),
	regexp.MustCompile(`(?i)Timeout`),
	regexp.MustCompile(`(?i)Connection error`),
	regexp.MustCompile(`(?i)Invalid`),
	regexp.MustCompile(`(?i)Not found`),
	regexp.MustCompile(`(?i)Unauthorized`),
	regexp.MustCompile(`(?i)Forbidden`),
}

// ConversationMetrics summarizes one conversation's size and latency.
type ConversationMetrics struct {
	UserMessages               int     `json:"userMessages"`
	AssistantMessages          int     `json:"assistantMessages"`
	TotalMessages              int     `json:"totalMessages"`
	DurationMinutes            float64 `json:"durationMinutes"`
	DurationHours              float64 `json:"durationHours"`
	TimeToFirstResponseSeconds float64 `json:"timeToFirstResponseSeconds"`
	TimeToFirstResponseMinutes float64 `json:"timeToFirstResponseMinutes"`
}

// ComputeMetrics derives per-conversation metrics. Returns nil when the
// conversation has no messages. Messages with unparseable timestamps are
// excluded from the duration bounds.
func ComputeMetrics(conv *Conversation) *ConversationMetrics {
	if conv == nil || len(conv.Messages) == 0 {
		return nil
	}

	m := &ConversationMetrics{TotalMessages: len(conv.Messages)}
	var first, last time.Time
	for i := range conv.Messages {
		switch conv.Messages[i].CanonicalRole() {
		case RoleUser:
			m.UserMessages++
		case RoleAssistant:
			m.AssistantMessages++
		}
		ts := conv.Messages[i].EffectiveTimestamp()
		if ts.IsZero() {
			continue
		}
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if last.IsZero() || ts.After(last) {
			last = ts
		}
	}
	if !first.IsZero() && !last.IsZero() {
		duration := last.Sub(first)
		m.DurationMinutes = round2(duration.Minutes())
		m.DurationHours = round2(duration.Hours())
	}

	firstUser := FirstMessageWithRole(conv.Messages, RoleUser)
	firstAssistant := FirstMessageWithRole(conv.Messages, RoleAssistant)
	if firstUser != nil && firstAssistant != nil {
		userAt := firstUser.EffectiveTimestamp()
		assistantAt := firstAssistant.EffectiveTimestamp()
		if !userAt.IsZero() && assistantAt.After(userAt) {
			latency := assistantAt.Sub(userAt)
			m.TimeToFirstResponseSeconds = round2(latency.Seconds())
			m.TimeToFirstResponseMinutes = round2(latency.Minutes())
		}
	}
	return m
}

// DetectSessionTimeouts flags, per message of the chronologically sorted
// list, whether the gap to the next message is a session timeout: at least
// SessionTimeoutGap and not followed by a user continuation utterance. The
// returned slice is aligned with SortMessagesChronological(msgs).
func DetectSessionTimeouts(msgs []Message) []bool {
	sorted := SortMessagesChronological(msgs)
	flags := make([]bool, len(sorted))
	for i := 0; i+1 < len(sorted); i++ {
		cur := sorted[i].OrderTimestamp()
		next := sorted[i+1].OrderTimestamp()
		if cur.IsZero() || next.IsZero() {
			continue
		}
		if next.Sub(cur) < SessionTimeoutGap {
			continue
		}
		if isContinuation(&sorted[i+1]) {
			continue
		}
		flags[i] = true
	}
	return flags
}

func isContinuation(msg *Message) bool {
	if msg.CanonicalRole() != RoleUser {
		return false
	}
	text := strings.TrimSpace(SpaceJoinedText(msg.Content))
	return continuationPattern.MatchString(text)
}

// HasErrorIndicators reports whether any system/status message's text
// matches a known error pattern.
func HasErrorIndicators(msgs []Message) bool {
	for i := range msgs {
		if !msgs[i].IsOperational() {
			continue
		}
		text := SpaceJoinedText(msgs[i].Content)
		if text == "" {
			continue
		}
		for _, pattern := range errorIndicatorPatterns {
			if pattern.MatchString(text) {
				return true
			}
		}
	}
	return false
}

// RangeItem is the minimal shape histogram aggregation needs: which
// conversation an item belongs to and when it was created. Threads
// contribute through their conversation back-reference so a conversation
// seen via both a thread and an upload counts once per bucket.
type RangeItem struct {
	ConversationID string
	CreatedAt      time.Time
}

// RangeItemsFromConversations adapts conversations for histogram bucketing.
func RangeItemsFromConversations(convs []*Conversation) []RangeItem {
	items := make([]RangeItem, 0, len(convs))
	for _, conv := range convs {
		if conv == nil {
			continue
		}
		items = append(items, RangeItem{ConversationID: conv.ID, CreatedAt: conv.CreatedAt.Time})
	}
	return items
}

// RangeItemsFromSummaries adapts thread summaries for histogram bucketing.
// Threads without a conversation back-reference bucket under their own id.
func RangeItemsFromSummaries(summaries []ThreadSummary) []RangeItem {
	items := make([]RangeItem, 0, len(summaries))
	for _, s := range summaries {
		convID := s.ConversationID
		if convID == "" {
			convID = s.ID
		}
		items = append(items, RangeItem{ConversationID: convID, CreatedAt: s.CreatedAt.Time})
	}
	return items
}

// DailyCount is one day bucket of the conversations-per-day histogram.
type DailyCount struct {
	Date          string `json:"date"`
	Conversations int    `json:"conversations"`
}

// HourlyCount is one hour bucket of the conversations-per-hour histogram.
type HourlyCount struct {
	Hour          string `json:"hour"`
	Conversations int    `json:"conversations"`
}

// ConversationsPerDay buckets items into every day of [start, end]
// inclusive, emitting zero-count buckets for empty days. Bucket counts are
// deduplicated by conversation id. All bucketing uses UTC.
func ConversationsPerDay(items []RangeItem, start, end time.Time) []DailyCount {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return nil
	}

	perDay := make(map[string]map[string]bool)
	for _, item := range items {
		ts := item.CreatedAt.UTC()
		if ts.IsZero() || ts.Before(start) || ts.After(end) {
			continue
		}
		key := ts.Format("2006-01-02")
		if perDay[key] == nil {
			perDay[key] = make(map[string]bool)
		}
		perDay[key][item.ConversationID] = true
	}

	var buckets []DailyCount
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for !day.After(end) {
		key := day.Format("2006-01-02")
		buckets = append(buckets, DailyCount{Date: key, Conversations: len(perDay[key])})
		day = day.AddDate(0, 0, 1)
	}
	return buckets
}

// ConversationsPerHour buckets items into every hour of [start, end]
// inclusive, with zero-count buckets for empty hours and per-bucket dedup by
// conversation id.
func ConversationsPerHour(items []RangeItem, start, end time.Time) []HourlyCount {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return nil
	}

	perHour := make(map[string]map[string]bool)
	for _, item := range items {
		ts := item.CreatedAt.UTC()
		if ts.IsZero() || ts.Before(start) || ts.After(end) {
			continue
		}
		key := ts.Format("2006-01-02 15:00")
		if perHour[key] == nil {
			perHour[key] = make(map[string]bool)
		}
		perHour[key][item.ConversationID] = true
	}

	var buckets []HourlyCount
	hour := start.Truncate(time.Hour)
	for !hour.After(end) {
		key := hour.Format("2006-01-02 15:00")
		buckets = append(buckets, HourlyCount{Hour: key, Conversations: len(perHour[key])})
		hour = hour.Add(time.Hour)
	}
	return buckets
}

// DashboardStats is the aggregate view the stats surface renders for a date
// range.
type DashboardStats struct {
	Start                      time.Time       `json:"start"`
	End                        time.Time       `json:"end"`
	TotalConversations         int             `json:"totalConversations"`
	TotalThreads               int             `json:"totalThreads"`
	TotalMessages              int             `json:"totalMessages"`
	ToolUsage                  []ToolUsage     `json:"toolUsage"`
	WorkflowUsage              []WorkflowUsage `json:"workflowUsage"`
	Rates                      ConversionRates `json:"rates"`
	ErrorCount                 int             `json:"errorCount"`
	ErrorRate                  float64         `json:"errorRate"`
	PerDay                     []DailyCount    `json:"perDay"`
	PerHour                    []HourlyCount   `json:"perHour"`
	AvgDurationMinutes         float64         `json:"avgDurationMinutes"`
	AvgTimeToFirstResponseSecs float64         `json:"avgTimeToFirstResponseSeconds"`
}

// ComputeDashboardStats filters conversations and thread summaries to
// [start, end] inclusive by creation time and rolls up every aggregate the
// dashboard shows.
func ComputeDashboardStats(convs []*Conversation, summaries []ThreadSummary, start, end time.Time) *DashboardStats {
	var inRange []*Conversation
	for _, conv := range convs {
		if conv == nil {
			continue
		}
		ts := conv.CreatedAt.Time
		if ts.IsZero() || ts.Before(start) || ts.After(end) {
			continue
		}
		inRange = append(inRange, conv)
	}
	var summariesInRange []ThreadSummary
	for _, s := range summaries {
		ts := s.CreatedAt.Time
		if ts.IsZero() || ts.Before(start) || ts.After(end) {
			continue
		}
		summariesInRange = append(summariesInRange, s)
	}

	stats := &DashboardStats{
		Start:              start,
		End:                end,
		TotalConversations: len(inRange),
		TotalThreads:       len(summariesInRange),
		ToolUsage:          ExtractToolUsage(inRange),
		WorkflowUsage:      ExtractWorkflowUsage(inRange),
		Rates:              ComputeConversionRates(inRange),
	}

	var durationSum, latencySum float64
	var durationN, latencyN int
	for _, conv := range inRange {
		stats.TotalMessages += len(conv.Messages)
		if HasErrorIndicators(conv.Messages) {
			stats.ErrorCount++
		}
		if m := ComputeMetrics(conv); m != nil {
			durationSum += m.DurationMinutes
			durationN++
			if m.TimeToFirstResponseSeconds > 0 {
				latencySum += m.TimeToFirstResponseSeconds
				latencyN++
			}
		}
	}
	stats.ErrorRate = ratePercent(stats.ErrorCount, len(inRange))
	if durationN > 0 {
		stats.AvgDurationMinutes = round2(durationSum / float64(durationN))
	}
	if latencyN > 0 {
		stats.AvgTimeToFirstResponseSecs = round2(latencySum / float64(latencyN))
	}

	items := append(RangeItemsFromConversations(inRange), RangeItemsFromSummaries(summariesInRange)...)
	stats.PerDay = ConversationsPerDay(items, start, end)
	stats.PerHour = ConversationsPerHour(items, start, end)
	return stats
}

// round2 rounds to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
