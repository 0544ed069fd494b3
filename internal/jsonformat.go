package internal

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// minEmbeddedJSONLength is the smallest candidate span treated as an
// embedded JSON object. Shorter brace spans are almost always prose.
const minEmbeddedJSONLength = 50

// looseKeyValuePattern is the cheap structural check a candidate must pass
// after unescaping before a full parse is attempted.
var looseKeyValuePattern = regexp.MustCompile(`["']\s*:\s*["'\[{]`)

// FormattedText is the result of embedded-JSON detection over a message's
// consolidated text.
type FormattedText struct {
	Text    string
	HasJSON bool
}

// FormatEmbeddedJSON finds JSON objects embedded as escaped strings inside
// text and replaces each with a fenced code block: pretty-printed ```json
// when the candidate parses, a ```text block with the best-effort unescaped
// content when it does not. Fenced regions in the input are passed through
// untouched, so running the formatter over its own output changes nothing.
// This stage never fails; anything unparseable degrades to the text fallback
// or is left as-is.
func FormatEmbeddedJSON(text string) FormattedText {
	if text == "" {
		return FormattedText{Text: text}
	}

	replaced := false
	var sb strings.Builder
	pos := 0
	for pos < len(text) {
		fenceStart := strings.Index(text[pos:], "```")
		if fenceStart < 0 {
			sb.WriteString(formatSegment(text[pos:], &replaced))
			break
		}
		fenceStart += pos
		sb.WriteString(formatSegment(text[pos:fenceStart], &replaced))

		fenceEnd := strings.Index(text[fenceStart+3:], "```")
		if fenceEnd < 0 {
			// Unclosed fence: protect the remainder.
			sb.WriteString(text[fenceStart:])
			pos = len(text)
			break
		}
		fenceEnd = fenceStart + 3 + fenceEnd + 3
		sb.WriteString(text[fenceStart:fenceEnd])
		pos = fenceEnd
	}

	result := sb.String()
	return FormattedText{
		Text:    result,
		HasJSON: replaced || strings.Contains(text, "```json"),
	}
}

// formatSegment scans one fence-free segment for embedded-JSON candidates
// and rewrites them in place.
func formatSegment(seg string, replaced *bool) string {
	if seg == "" {
		return seg
	}
	var sb strings.Builder
	pos := 0
	for {
		start := findCandidateStart(seg, pos)
		if start < 0 {
			sb.WriteString(seg[pos:])
			break
		}
		end := matchBalancedBraces(seg, start)
		if end < 0 {
			sb.WriteString(seg[pos : start+1])
			pos = start + 1
			continue
		}
		span := seg[start : end+1]
		block, ok := renderEmbeddedJSON(span)
		if !ok {
			sb.WriteString(seg[pos : start+1])
			pos = start + 1
			continue
		}
		sb.WriteString(seg[pos:start])
		sb.WriteString(block)
		*replaced = true
		pos = end + 1
	}
	return sb.String()
}

// findCandidateStart returns the index of the next '{' that is followed,
// after optional whitespace, by a backslash-escaped quote. That pairing is
// the signature of JSON serialized into a string field.
func findCandidateStart(s string, from int) int {
	for i := from; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		j := i + 1
		for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
			j++
		}
		if j+1 < len(s) && s[j] == '\\' && s[j+1] == '"' {
			return i
		}
	}
	return -1
}

// matchBalancedBraces walks from the opening brace at start and returns the
// index of its matching close brace, tracking escaped-quote string
// boundaries so braces inside string literals do not count. Returns -1 when
// the span never balances.
func matchBalancedBraces(s string, start int) int {
	depth := 0
	inString := false
	i := start
	for i < len(s) {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			if s[i+1] == '"' {
				inString = !inString
			}
			i += 2
			continue
		}
		if !inString {
			switch c {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return i
				}
			}
		}
		i++
	}
	return -1
}

// renderEmbeddedJSON validates and rewrites one candidate span. It returns
// false when the span should be left untouched (too short, or not shaped
// like a JSON object at all).
func renderEmbeddedJSON(span string) (string, bool) {
	if len(span) < minEmbeddedJSONLength || !strings.Contains(span, `\"`) {
		return "", false
	}

	unescaped := unescapeEmbedded(span)
	if !looseKeyValuePattern.MatchString(unescaped) {
		return "", false
	}

	sanitized := sanitizeControlChars(unescaped)
	var parsed interface{}
	if err := json.Unmarshal([]byte(sanitized), &parsed); err == nil {
		if pretty, err := json.MarshalIndent(parsed, "", "  "); err == nil {
			return "```json\n" + string(pretty) + "\n```", true
		}
	}
	LogDebug("Embedded JSON candidate did not parse, falling back to text block (%d bytes)", len(span))
	return "```text\n" + sanitized + "\n```", true
}

// unescapeEmbedded resolves one level of backslash escaping: \" \\ \n \t \r
// \b \f \/ and \uXXXX. Unknown escapes are kept verbatim.
func unescapeEmbedded(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	i := 0
	for i < len(s) {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			sb.WriteByte(c)
			i++
			continue
		}
		switch s[i+1] {
		case '"':
			sb.WriteByte('"')
		case '\\':
			sb.WriteByte('\\')
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case '/':
			sb.WriteByte('/')
		case 'u':
			if i+6 <= len(s) {
				if v, err := strconv.ParseUint(s[i+2:i+6], 16, 32); err == nil {
					sb.WriteRune(rune(v))
					i += 6
					continue
				}
			}
			sb.WriteByte('\\')
			sb.WriteByte('u')
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i+1])
		}
		i += 2
	}
	return sb.String()
}

// sanitizeControlChars makes unescaped candidate text safe to parse: raw
// control characters inside string literals get their JSON escape (\b \t \n
// \f \r, \uXXXX otherwise); outside string literals they are dropped except
// newline, tab and carriage return.
func sanitizeControlChars(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inString := false
	escaped := false
	for _, r := range s {
		if escaped {
			sb.WriteRune(r)
			escaped = false
			continue
		}
		if inString && r == '\\' {
			sb.WriteRune(r)
			escaped = true
			continue
		}
		if r == '"' {
			inString = !inString
			sb.WriteRune(r)
			continue
		}
		if r < 0x20 {
			if inString {
				switch r {
				case '\b':
					sb.WriteString(`\b`)
				case '\t':
					sb.WriteString(`\t`)
				case '\n':
					sb.WriteString(`\n`)
				case '\f':
					sb.WriteString(`\f`)
				case '\r':
					sb.WriteString(`\r`)
				default:
					fmt.Fprintf(&sb, `\u%04x`, r)
				}
			} else if r == '\n' || r == '\t' || r == '\r' {
				sb.WriteRune(r)
			}
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
