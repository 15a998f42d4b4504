package agent

import (
	"encoding/json"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// FinalAnswerAction is the sentinel action name that ends the loop.
const FinalAnswerAction = "Final Answer"

// Action is the model's structured directive: which tool to invoke, or
// the final-answer sentinel, and with what input.
type Action struct {
	Action string
	Input  string
}

type rawAction struct {
	Action      string          `json:"action"`
	ActionInput json.RawMessage `json:"action_input"`
}

// ParseAction extracts the first well-formed action blob from free-form
// model output. The blob may be wrapped in code fences or surrounded by
// prose; later blobs are ignored.
func ParseAction(s string) (Action, error) {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var raw rawAction
		if err := dec.Decode(&raw); err != nil || raw.Action == "" {
			continue
		}
		return Action{Action: raw.Action, Input: decodeInput(raw.ActionInput)}, nil
	}
	return Action{}, ErrStructuredOutput
}

func decodeInput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// non-string input (object, number): pass the JSON text through
	return strings.TrimSpace(string(raw))
}

// answerStreamer incrementally extracts final-answer text from the model
// stream, so fragments reach the client before the directive is fully
// received. It only starts emitting once the action name has resolved to
// the final-answer sentinel; tool directives emit nothing.
type answerStreamer struct {
	raw     strings.Builder
	emitted string
	blocked bool
}

// Feed appends a model chunk and returns any newly decodable answer text.
func (a *answerStreamer) Feed(chunk string) string {
	if a.blocked {
		return ""
	}
	a.raw.WriteString(chunk)
	decoded, isFinal, resolved := scanAnswer(a.raw.String())
	if resolved && !isFinal {
		a.blocked = true
		return ""
	}
	if !isFinal || len(decoded) <= len(a.emitted) {
		return ""
	}
	out := decoded[len(a.emitted):]
	a.emitted = decoded
	return out
}

// Flush returns the part of the parsed answer not yet emitted. Called
// after the authoritative parse so the client always receives the whole
// answer even when incremental scanning could not keep up.
func (a *answerStreamer) Flush(answer string) string {
	if a.emitted == "" {
		return answer
	}
	if strings.HasPrefix(answer, a.emitted) {
		return answer[len(a.emitted):]
	}
	// scanner and parser disagree; the parsed answer wins, nothing
	// safe is left to emit
	return ""
}

const (
	valueOK = iota
	valueIncomplete
	valueNotString
)

// scanAnswer scans accumulated model output for a final-answer directive.
// decoded is the answer text recoverable so far; isFinal reports whether
// the action resolved to the final-answer sentinel; resolved reports
// whether the action name is fully known.
func scanAnswer(s string) (decoded string, isFinal, resolved bool) {
	i := anchorActionKey(s)
	if i < 0 {
		return "", false, false
	}
	rest, status := afterColonQuote(s[i+len(`"action"`):])
	if status != valueOK {
		return "", false, false
	}
	name, consumed, complete := decodeStringPrefix(rest)
	if !complete {
		return "", false, false
	}
	if name != FinalAnswerAction {
		return "", false, true
	}

	// only the directive's own next member may feed the stream, so the
	// input key must follow the name after a comma
	tail := rest[consumed:]
	k := 0
	for k < len(tail) && isSpace(tail[k]) {
		k++
	}
	if k >= len(tail) || tail[k] != ',' {
		return "", true, true
	}
	k++
	for k < len(tail) && isSpace(tail[k]) {
		k++
	}
	if !strings.HasPrefix(tail[k:], `"action_input"`) {
		return "", true, true
	}
	val, status := afterColonQuote(tail[k+len(`"action_input"`):])
	if status != valueOK {
		return "", true, true
	}
	decoded, _, _ = decodeStringPrefix(val)
	return decoded, true, true
}

// anchorActionKey locates the "action" key that opens a directive blob.
// Prose can restate the directive format without surrounding braces;
// only a key directly after an object's opening brace can belong to the
// blob ParseAction will honor, so every other occurrence is skipped.
// Keys in a later position inside a blob are left to the authoritative
// parse, which trades incremental emission for never emitting text the
// parse would not.
func anchorActionKey(s string) int {
	from := 0
	for {
		i := strings.Index(s[from:], `"action"`)
		if i < 0 {
			return -1
		}
		i += from
		j := i
		for j > 0 && isSpace(s[j-1]) {
			j--
		}
		if j > 0 && s[j-1] == '{' {
			return i
		}
		from = i + len(`"action"`)
	}
}

// afterColonQuote skips `: "` between a key and its string value,
// returning the text after the opening quote.
func afterColonQuote(s string) (string, int) {
	j := 0
	for j < len(s) && isSpace(s[j]) {
		j++
	}
	if j >= len(s) {
		return "", valueIncomplete
	}
	if s[j] != ':' {
		return "", valueNotString
	}
	j++
	for j < len(s) && isSpace(s[j]) {
		j++
	}
	if j >= len(s) {
		return "", valueIncomplete
	}
	if s[j] != '"' {
		return "", valueNotString
	}
	return s[j+1:], valueOK
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// decodeStringPrefix decodes a JSON string body up to its closing quote
// or the end of available input. consumed counts raw bytes including the
// closing quote when complete. A trailing incomplete escape sequence is
// left unconsumed so a later call can resume cleanly.
func decodeStringPrefix(s string) (decoded string, consumed int, complete bool) {
	var b strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '"' {
			return b.String(), i + 1, true
		}
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(s) {
			break
		}
		switch s[i+1] {
		case '"', '\\', '/':
			b.WriteByte(s[i+1])
			i += 2
		case 'b':
			b.WriteByte('\b')
			i += 2
		case 'f':
			b.WriteByte('\f')
			i += 2
		case 'n':
			b.WriteByte('\n')
			i += 2
		case 'r':
			b.WriteByte('\r')
			i += 2
		case 't':
			b.WriteByte('\t')
			i += 2
		case 'u':
			r, n, ok := decodeUnicodeEscape(s[i:])
			if !ok {
				return b.String(), i, false
			}
			b.WriteRune(r)
			i += n
		default:
			// unknown escape; keep the character as-is
			b.WriteByte(s[i+1])
			i += 2
		}
	}
	return b.String(), i, false
}

// decodeUnicodeEscape decodes \uXXXX at the start of s, combining
// surrogate pairs when both halves are present.
func decodeUnicodeEscape(s string) (rune, int, bool) {
	if len(s) < 6 {
		return 0, 0, false
	}
	v, ok := hex4(s[2:6])
	if !ok {
		return utf8.RuneError, 6, true
	}
	r := rune(v)
	if !utf16.IsSurrogate(r) {
		return r, 6, true
	}
	// high surrogate needs its pair
	if len(s) < 12 {
		return 0, 0, false
	}
	if s[6] != '\\' || s[7] != 'u' {
		return utf8.RuneError, 6, true
	}
	v2, ok := hex4(s[8:12])
	if !ok {
		return utf8.RuneError, 6, true
	}
	combined := utf16.DecodeRune(r, rune(v2))
	if combined == utf8.RuneError {
		return utf8.RuneError, 6, true
	}
	return combined, 12, true
}

func hex4(s string) (int, bool) {
	v := 0
	for i := 0; i < 4; i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			v = v<<4 | int(c-'0')
		case c >= 'a' && c <= 'f':
			v = v<<4 | int(c-'a'+10)
		case c >= 'A' && c <= 'F':
			v = v<<4 | int(c-'A'+10)
		default:
			return 0, false
		}
	}
	return v, true
}
