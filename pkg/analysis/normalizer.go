// Package analysis turns raw turn text into the canonical Result. The
// service answers in three dialects observed across model versions: a strict
// JSON object, prose with a JSON object embedded somewhere inside, or
// labeled plain text. Resolution tries them in that order; first success
// wins.
package analysis

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

type Dialect string

const (
	DialectStrict    Dialect = "strict_json"
	DialectEmbedded  Dialect = "embedded_json"
	DialectPlainText Dialect = "plain_text"
)

type Option func(*Normalizer)

// WithFillerFilter discards known non-answer filler turns. Only the
// continuous-streaming deployment enables this; the segmented prompt forbids
// filler so the filter would only risk eating real answers there.
func WithFillerFilter() Option {
	return func(n *Normalizer) { n.filterFiller = true }
}

type Normalizer struct {
	filterFiller bool
	log          *slog.Logger
}

func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{log: slog.Default().With(slog.String("component", "normalizer"))}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize parses one complete turn. It returns nil when nothing usable
// could be recovered, alongside the dialect that produced the result.
func (n *Normalizer) Normalize(raw string) (*Result, Dialect) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ""
	}
	if n.filterFiller && isFiller(text) {
		n.log.Debug("filler_turn_discarded", slog.String("text", text))
		return nil, ""
	}

	if obj := parseStrict(text); obj != nil {
		if r := normalizeObject(obj); r.Usable() {
			return r, DialectStrict
		}
	}
	if obj := parseEmbedded(text); obj != nil {
		if r := normalizeObject(obj); r.Usable() {
			return r, DialectEmbedded
		}
	}
	if r := normalizePlainText(text); r.Usable() {
		return r, DialectPlainText
	}
	return nil, ""
}

func parseStrict(text string) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil
	}
	return obj
}

// parseEmbedded extracts the first balanced {...} substring and parses it.
func parseEmbedded(text string) map[string]any {
	start := strings.Index(text, "{")
	if start < 0 {
		return nil
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return parseStrict(text[start : i+1])
			}
		}
	}
	return nil
}

func normalizeObject(obj map[string]any) *Result {
	r := &Result{Emoji: PlaceholderEmoji}

	r.Transcript = stringField(obj, "transcript")
	if r.Transcript == "" {
		r.Transcript = stringField(obj, "transcription")
	}

	analysisObj, _ := obj["analysis"].(map[string]any)
	r.Analysis = analysisText(obj["analysis"])

	r.Sentiment = stringField(obj, "sentiment")
	if r.Sentiment == "" {
		r.Sentiment = nestedString(obj, "sentiment", "overall")
	}
	if r.Sentiment == "" && analysisObj != nil {
		r.Sentiment = nestedString(analysisObj, "sentiment", "overall")
	}

	r.Emotion = stringField(obj, "emotion")
	if r.Emotion == "" && analysisObj != nil {
		r.Emotion = stringField(analysisObj, "emotion_detected")
	}

	if e := stringField(obj, "emoji"); e != "" {
		r.Emoji = e
	}

	if f, ok := floatValue(obj["confidence"]); ok {
		r.Confidence = &f
	}
	r.Color = normalizeColor(stringField(obj, "color"))
	r.Speed = clampedFloat(obj["speed"], -1, 1)
	r.Smooth = clampedFloat(obj["smooth"], 0, 1)
	return r
}

// analysisText renders the analysis field, which models have returned as a
// plain string, a structured object, or not at all.
func analysisText(v any) string {
	switch a := v.(type) {
	case string:
		return strings.TrimSpace(a)
	case map[string]any:
		if s := stringField(a, "uni_personal_reaction"); s != "" {
			return s
		}
		if s := stringField(a, "response_suggestion"); s != "" {
			return s
		}
		var parts []string
		if s := nestedString(a, "sentiment", "overall"); s != "" {
			parts = append(parts, "Sentiment: "+s)
		} else if s := stringField(a, "sentiment"); s != "" {
			parts = append(parts, "Sentiment: "+s)
		}
		if s := stringField(a, "tone"); s != "" {
			parts = append(parts, "Tone: "+s)
		}
		if s := stringField(a, "emotion_detected"); s != "" {
			parts = append(parts, "Emotion: "+s)
		}
		if len(parts) > 0 {
			return strings.Join(parts, ". ")
		}
		b, err := json.Marshal(a)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return ""
	}
}

var (
	transcriptRe = regexp.MustCompile(`(?is)transcript:\s*(.*?)\s*(?:\n|analysis:|emoji:|$)`)
	analysisRe   = regexp.MustCompile(`(?is)analysis:\s*(.*?)\s*(?:emoji:|$)`)
	emojiRe      = regexp.MustCompile(`(?i)emoji:\s*(\S+)`)

	transcriptSpanRe = regexp.MustCompile(`(?i)transcript:[^\n]*`)
	emojiSuffixRe    = regexp.MustCompile(`(?is)emoji:.*$`)
)

func normalizePlainText(text string) *Result {
	r := &Result{Emoji: PlaceholderEmoji}

	if m := transcriptRe.FindStringSubmatch(text); m != nil {
		r.Transcript = strings.TrimSpace(m[1])
	}
	if m := analysisRe.FindStringSubmatch(text); m != nil {
		r.Analysis = strings.TrimSpace(m[1])
	} else {
		// No label at all: treat the remainder of the message as analysis.
		rest := transcriptSpanRe.ReplaceAllString(text, "")
		rest = emojiSuffixRe.ReplaceAllString(rest, "")
		r.Analysis = strings.TrimSpace(rest)
	}
	if m := emojiRe.FindStringSubmatch(text); m != nil {
		r.Emoji = firstRunes(m[1], 2)
	} else if g := scanPictographic(text); g != "" {
		r.Emoji = g
	}
	return r
}

// firstRunes keeps up to n runes, enough for multi-codepoint glyphs.
func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}

func scanPictographic(text string) string {
	for _, r := range text {
		if isPictographic(r) {
			return string(r)
		}
	}
	return ""
}

func isPictographic(r rune) bool {
	return (r >= 0x1F300 && r <= 0x1FAFF) || (r >= 0x2600 && r <= 0x27BF)
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func nestedString(obj map[string]any, key, sub string) string {
	m, _ := obj[key].(map[string]any)
	if m == nil {
		return ""
	}
	return stringField(m, sub)
}
