package internal

import (
	"regexp"
	"strings"
)

// Category labels with special roles in the pipeline.
const (
	CategoryInspiration     = "Inspiration/Reiseberatung"
	CategoryCustomerSupport = "Kundenberatung/Customer Support"
	CategoryFallback        = "Others/Sonstiges"
)

// inspirationPhrases match the first user message by case-insensitive
// full-string equality (after trimming).
var inspirationPhrases = []string{
	"inspiration",
	"inspirier mich",
	"inspiriere mich",
	"ich brauche inspiration",
	"ich suche inspiration",
	"was kannst du mir empfehlen",
	"hast du einen tipp für mich",
	"überrasch mich",
	"überrasche mich",
	"inspire me",
	"i need inspiration",
	"surprise me",
}

// inspirationPatterns match open-ended "where should I go" phrasings that a
// keyword table cannot express.
var inspirationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)wohin\s.*\b(reisen|verreisen|urlaub|fahren)\b`),
	regexp.MustCompile(`(?i)\b(empfehl|empfiehl)\w*\s.*\b(reiseziel|urlaubsziel|ziel|region|park)\b`),
	regexp.MustCompile(`(?i)\bwhere\s+should\s+(i|we)\s+(go|travel)\b`),
	regexp.MustCompile(`(?i)\b(suche|suchen|brauche)\s.*\b(ideen|inspiration)\b`),
	regexp.MustCompile(`(?i)\b(urlaubsideen|reiseideen|reisetipps|urlaubstipps)\b`),
}

// CategoryKeywords pairs a category label with its match keywords. Matching
// is case-insensitive substring containment against the first user message.
type CategoryKeywords struct {
	Category string
	Keywords []string
}

// categoryTable is scanned in order and the first category with a matching
// keyword wins, so the order is part of the contract: several keywords would
// also match later rows ("tipp" only counts as Inspiration because that row
// comes first).
var categoryTable = []CategoryKeywords{
	{Category: CategoryInspiration, Keywords: []string{
		"inspiration", "inspirier", "tipp", "empfehlung", "empfehlungen",
		"vorschlag", "vorschläge", "idee", "ideen", "recommendation", "suggestion",
	}},
	{Category: CategoryCustomerSupport, Keywords: []string{
		"kundenservice", "kundenberatung", "customer service", "support",
		"beschwerde", "complaint", "mitarbeiter", "berater", "hotline",
		"rückruf", "callback",
	}},
	{Category: "Buchung/Booking", Keywords: []string{
		"buchen", "buchung", "reservieren", "reservierung", "booking",
		"verfügbarkeit", "availability", "noch frei", "book a",
	}},
	{Category: "Stornierung/Cancellation", Keywords: []string{
		"stornieren", "stornierung", "storno", "kündigen", "absagen",
		"cancel", "cancellation", "refund", "rückerstattung", "geld zurück",
	}},
	{Category: "Umbuchung/Rebooking", Keywords: []string{
		"umbuchen", "umbuchung", "verschieben", "anderes datum",
		"datum ändern", "rebook", "rebooking", "change my booking",
	}},
	{Category: "Bezahlung/Payment", Keywords: []string{
		"bezahlen", "bezahlung", "zahlung", "zahlen", "rechnung", "payment",
		"invoice", "paypal", "kreditkarte", "credit card", "überweisung",
		"gutschein", "voucher",
	}},
	{Category: "An- & Abreise/Arrival & Departure", Keywords: []string{
		"anreise", "abreise", "check-in", "checkin", "check-out", "checkout",
		"einchecken", "auschecken", "arrival", "departure", "late check",
		"schlüssel",
	}},
	{Category: "Parkplätze/Parking", Keywords: []string{
		"parken", "parkplatz", "parkplätze", "parking", "stellplatz",
		"tiefgarage", "wohnmobil",
	}},
	{Category: "Gastronomie/Dining", Keywords: []string{
		"frühstück", "abendessen", "restaurant", "essen", "halbpension",
		"vollpension", "buffet", "dinner", "breakfast", "gastronomie",
		"brötchen",
	}},
	{Category: "Unterkunft/Accommodation", Keywords: []string{
		"zimmer", "ferienhaus", "ferienwohnung", "apartment", "unterkunft",
		"bungalow", "lodge", "accommodation", "room",
	}},
	{Category: "Ausstattung/Amenities", Keywords: []string{
		"wlan", "wifi", "internet", "klimaanlage", "handtücher", "bettwäsche",
		"küche", "geschirrspüler", "waschmaschine", "kamin", "amenities",
	}},
	{Category: "Aktivitäten/Activities", Keywords: []string{
		"aktivitäten", "schwimmbad", "pool", "sauna", "wellness",
		"spielplatz", "fahrrad", "wandern", "ausflug", "freizeit",
		"minigolf", "bowling", "animation", "activities",
	}},
	{Category: "Haustiere/Pets", Keywords: []string{
		"hund", "hunde", "haustier", "haustiere", "katze", "pet", "pets",
		"dog", "vierbeiner",
	}},
	{Category: "Barrierefreiheit/Accessibility", Keywords: []string{
		"barrierefrei", "rollstuhl", "behindertengerecht", "accessible",
		"wheelchair", "handicap",
	}},
	{Category: "Lage & Anfahrt/Location & Directions", Keywords: []string{
		"anfahrt", "adresse", "navi", "route", "entfernung", "wie weit",
		"directions", "how far", "bahnhof", "flughafen",
	}},
	{Category: "Öffnungszeiten/Opening Hours", Keywords: []string{
		"öffnungszeiten", "geöffnet", "öffnet", "opening hours", "open until",
		"rezeption besetzt",
	}},
	{Category: "Wetter/Weather", Keywords: []string{
		"wetter", "weather", "regen", "temperatur", "schnee", "sonnig",
	}},
}

// Categorize maps a conversation's messages to a topic label. The boolean is
// false when no category applies; dashboard filtering treats that as
// absence. Priority: workflow tags, then inspiration phrase/pattern matching
// on the first user message, then the keyword table.
func Categorize(msgs []Message) (string, bool) {
	workflows := ExtractWorkflows(msgs)
	if workflows[WorkflowTravelAgent] {
		return CategoryInspiration, true
	}
	if workflows[WorkflowContactService] {
		return CategoryCustomerSupport, true
	}

	first := FirstMessageWithRole(msgs, RoleUser)
	if first == nil {
		return "", false
	}
	text := strings.TrimSpace(SpaceJoinedText(first.Content))
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)

	for _, phrase := range inspirationPhrases {
		if lower == phrase {
			return CategoryInspiration, true
		}
	}
	for _, pattern := range inspirationPatterns {
		if pattern.MatchString(text) {
			return CategoryInspiration, true
		}
	}

	for _, entry := range categoryTable {
		for _, keyword := range entry.Keywords {
			if strings.Contains(lower, keyword) {
				return entry.Category, true
			}
		}
	}

	return "", false
}

// CategorizeOrDefault is Categorize with a guaranteed label: conversations
// without a match get the fallback bucket. Detail views badge every
// conversation; dashboard filters treat unmatched ones as absent.
func CategorizeOrDefault(msgs []Message) string {
	if category, ok := Categorize(msgs); ok {
		return category
	}
	return CategoryFallback
}
