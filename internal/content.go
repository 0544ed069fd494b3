package internal

import "strings"

// ConsolidatedContent is the display form of a message: one text string plus
// the non-text items in their original order.
type ConsolidatedContent struct {
	Text          string
	HasJSON       bool
	OtherContents []MessageContent
}

// ConsolidateContent merges a message's text fragments into one display
// string and splits off the non-text items. A single text fragment passes
// through verbatim; multiple fragments are concatenated with no separator,
// since the backend streams contiguous fragments rather than independent
// sentences. The merged text then runs through embedded-JSON formatting.
func ConsolidateContent(contents []MessageContent) ConsolidatedContent {
	var texts []string
	var others []MessageContent
	for i := range contents {
		if contents[i].IsText() {
			texts = append(texts, contents[i].TextValue())
		} else {
			others = append(others, contents[i])
		}
	}

	var text string
	switch len(texts) {
	case 0:
	case 1:
		text = texts[0]
	default:
		text = strings.Join(texts, "")
	}

	formatted := FormatEmbeddedJSON(text)
	return ConsolidatedContent{
		Text:          formatted.Text,
		HasJSON:       formatted.HasJSON,
		OtherContents: others,
	}
}

// SpaceJoinedText joins a message's text fragments with single spaces.
// Categorization wants word boundaries between fragments, unlike display
// consolidation which keeps fragments contiguous.
func SpaceJoinedText(contents []MessageContent) string {
	var texts []string
	for i := range contents {
		if contents[i].IsText() {
			if v := contents[i].TextValue(); v != "" {
				texts = append(texts, v)
			}
		}
	}
	return strings.Join(texts, " ")
}
