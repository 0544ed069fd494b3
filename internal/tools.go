package internal

import (
	"regexp"
	"sort"
	"strings"
)

// Workflow tags the categorizer and rate analyzers key on.
const (
	WorkflowTravelAgent    = "workflow-travel-agent"
	WorkflowContactService = "workflow-contact-customer-service"
)

// excludedTools are internal bookkeeping tools the backend invokes on almost
// every turn; they are removed from usage reports.
var excludedTools = map[string]bool{
	"setWorkflows":  true,
	"controlPage":   true,
	"display_links": true,
}

// Workflow tags appear in system messages either as a markdown bullet
// listing or as bare workflow-* tokens.
var (
	workflowListPattern  = regexp.MustCompile("\\*\\s*\\*\\*Workflows:\\*\\*\\s*`([^`]*)`")
	workflowTokenPattern = regexp.MustCompile(`workflow-[\w-]+`)
)

// toolTextPatterns are the free-text shapes tool invocations take in message
// text. The upstream format varies between releases, so all of them stay in
// play; matches are deduplicated per message afterwards.
var toolTextPatterns = []*regexp.Regexp{
	regexp.MustCompile("\\*\\*Tool Name:\\*\\*\\s*`([^`]+)`"),
	regexp.MustCompile("Tool Call Initiated\\s*`([^`]+)`"),
	regexp.MustCompile(`Tool Call Initiated\s*\(([^)]+)\)`),
	regexp.MustCompile(`Tool Call (?:Initiated|Completed):\s*([\w-]+)`),
	regexp.MustCompile("Calling tool:\\s*`([^`]+)`"),
	regexp.MustCompile("Using tool:\\s*`([^`]+)`"),
}

// Response-time samples outside this window are treated as unrelated to tool
// latency and dropped.
const maxToolResponseSeconds = 300

// ToolUsage aggregates per-tool occurrence counts and response-time samples
// across an analysis pass. Derived, never persisted.
type ToolUsage struct {
	Name            string    `json:"name"`
	Count           int       `json:"count"`
	AvgResponseTime float64   `json:"avgResponseTime"`
	ResponseTimes   []float64 `json:"responseTimes"`
}

// WorkflowUsage counts the conversations a workflow tag appeared in.
type WorkflowUsage struct {
	Workflow   string  `json:"workflow"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ExtractWorkflows unions the workflow tags found in the system/status
// messages of a message list.
func ExtractWorkflows(msgs []Message) map[string]bool {
	workflows := make(map[string]bool)
	for i := range msgs {
		if !msgs[i].IsOperational() {
			continue
		}
		text := SpaceJoinedText(msgs[i].Content)
		if text == "" {
			continue
		}
		for _, match := range workflowListPattern.FindAllStringSubmatch(text, -1) {
			for _, name := range strings.Split(match[1], ",") {
				name = strings.TrimSpace(name)
				if len(name) > 1 {
					workflows[name] = true
				}
			}
		}
		for _, token := range workflowTokenPattern.FindAllString(text, -1) {
			workflows[token] = true
		}
	}
	return workflows
}

// MessageTools returns the deduplicated set of tool names one message
// invokes, across the structured field variants and the free-text patterns.
// The exclusion list is applied here so every consumer sees the same view.
func MessageTools(msg *Message) map[string]bool {
	tools := make(map[string]bool)
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name != "" && !excludedTools[name] {
			tools[name] = true
		}
	}

	for i := range msg.Content {
		item := &msg.Content[i]
		if item.ToolUse != nil {
			add(item.ToolUse.Name)
		}
		if item.ToolCall != nil {
			add(item.ToolCall.Name)
		}
		if item.Kind == ContentKindToolUse {
			add(item.ToolName)
		}
		if item.Type == ContentKindToolUse {
			add(item.Name)
		}
		if item.Tool != nil {
			add(item.Tool.Name)
		}
		if item.FunctionCall != nil {
			add(item.FunctionCall.Name)
		}
		if text := item.TextValue(); text != "" {
			for _, pattern := range toolTextPatterns {
				for _, match := range pattern.FindAllStringSubmatch(text, -1) {
					add(match[1])
				}
			}
		}
	}
	for i := range msg.ToolCalls {
		add(msg.ToolCalls[i].Function.Name)
	}
	return tools
}

// ConversationTools unions the per-message tool sets of a conversation.
func ConversationTools(conv *Conversation) map[string]bool {
	tools := make(map[string]bool)
	for i := range conv.Messages {
		for name := range MessageTools(&conv.Messages[i]) {
			tools[name] = true
		}
	}
	return tools
}

// ExtractToolUsage scans every message of every conversation for tool
// invocations and aggregates counts and response-time samples per tool. A
// tool mentioned several ways in one message counts once for that message.
// The response-time sample for a message is the gap to the previous message
// in seconds, recorded only inside (0, 300).
func ExtractToolUsage(convs []*Conversation) []ToolUsage {
	byName := make(map[string]*ToolUsage)
	for _, conv := range convs {
		if conv == nil {
			continue
		}
		for i := range conv.Messages {
			tools := MessageTools(&conv.Messages[i])
			if len(tools) == 0 {
				continue
			}

			sample, hasSample := responseTimeSample(conv.Messages, i)
			for name := range tools {
				usage, ok := byName[name]
				if !ok {
					usage = &ToolUsage{Name: name}
					byName[name] = usage
				}
				usage.Count++
				if hasSample {
					usage.ResponseTimes = append(usage.ResponseTimes, sample)
				}
			}
		}
	}

	result := make([]ToolUsage, 0, len(byName))
	for _, usage := range byName {
		usage.AvgResponseTime = round2(mean(usage.ResponseTimes))
		result = append(result, *usage)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// responseTimeSample computes the sentAt gap from the previous message for
// the message at index i. The first message and messages without sentAt
// yield no sample.
func responseTimeSample(msgs []Message, i int) (float64, bool) {
	if i == 0 {
		return 0, false
	}
	cur, prev := msgs[i].SentAt, msgs[i-1].SentAt
	if cur.IsZero() || prev.IsZero() {
		return 0, false
	}
	delta := cur.Sub(prev.Time).Seconds()
	if delta <= 0 || delta >= maxToolResponseSeconds {
		return 0, false
	}
	return delta, true
}

// ExtractWorkflowUsage counts, for each workflow tag, the conversations it
// appeared in, with the share of the analyzed set as a 2-decimal percentage.
func ExtractWorkflowUsage(convs []*Conversation) []WorkflowUsage {
	counts := make(map[string]int)
	for _, conv := range convs {
		if conv == nil {
			continue
		}
		for workflow := range ExtractWorkflows(conv.Messages) {
			counts[workflow]++
		}
	}

	total := len(convs)
	result := make([]WorkflowUsage, 0, len(counts))
	for workflow, count := range counts {
		percentage := 0.0
		if total > 0 {
			percentage = round2(float64(count) / float64(total) * 100)
		}
		result = append(result, WorkflowUsage{Workflow: workflow, Count: count, Percentage: percentage})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Workflow < result[j].Workflow
	})
	return result
}

func mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, sample := range samples {
		sum += sample
	}
	return sum / float64(len(samples))
}
