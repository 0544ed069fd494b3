package internal

import (
	"math"
	"strings"
)

// contactToolKeywords mark a tool as a customer-service contact channel.
var contactToolKeywords = []string{
	"send-message-to-customer-service",
	"callback",
	"contact",
	"customer-service",
	"support",
}

// travelAgentToolKeywords mark a tool as part of the travel-agent funnel.
var travelAgentToolKeywords = []string{
	"travel", "booking", "flight", "hotel", "reservation",
	"trip", "destination", "agent", "offer", "basket",
}

// ConversionRates holds the contact and travel-agent conversion percentages
// over an analyzed conversation set.
type ConversionRates struct {
	ContactRate        float64 `json:"kontaktquote"`
	TravelAgentRate    float64 `json:"travelAgentQuote"`
	ContactCount       int     `json:"contactCount"`
	TravelAgentCount   int     `json:"travelAgentCount"`
	TotalConversations int     `json:"totalConversations"`
}

// IsContactTool reports whether a tool name marks a customer-service
// contact.
func IsContactTool(name string) bool {
	return matchesAnyKeyword(name, contactToolKeywords)
}

// IsTravelAgentTool reports whether a tool name belongs to the travel-agent
// funnel.
func IsTravelAgentTool(name string) bool {
	return matchesAnyKeyword(name, travelAgentToolKeywords)
}

func matchesAnyKeyword(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// ComputeConversionRates derives the contact and travel-agent rates for a
// conversation set. A conversation converts to contact when any of its tools
// matches the contact keywords; to travel-agent when it carries the
// workflow-travel-agent tag or any tool matches the travel keywords.
func ComputeConversionRates(convs []*Conversation) ConversionRates {
	rates := ConversionRates{TotalConversations: len(convs)}
	for _, conv := range convs {
		if conv == nil {
			continue
		}
		tools := ConversationTools(conv)

		contact := false
		travel := ExtractWorkflows(conv.Messages)[WorkflowTravelAgent]
		for name := range tools {
			if !contact && IsContactTool(name) {
				contact = true
			}
			if !travel && IsTravelAgentTool(name) {
				travel = true
			}
		}
		if contact {
			rates.ContactCount++
		}
		if travel {
			rates.TravelAgentCount++
		}
	}
	rates.ContactRate = ratePercent(rates.ContactCount, rates.TotalConversations)
	rates.TravelAgentRate = ratePercent(rates.TravelAgentCount, rates.TotalConversations)
	return rates
}

// ratePercent computes round(n/total*10000)/100, the 2-decimal percentage
// arithmetic used for every rate in the dashboard. Zero when total is zero.
func ratePercent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*10000) / 100
}
