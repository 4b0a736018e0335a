package coach

import "strings"

// ParsedReply is the structured view of one raw model response. When the
// expected markers are missing entirely the whole text becomes the reply and
// Fallback is set; a parse miss never fails the turn.
type ParsedReply struct {
	Corrected string
	Tip       string
	Reply     string
	Fallback  bool
}

type section int

const (
	sectionNone section = iota
	sectionCorrected
	sectionTip
	sectionReply
)

// Markers the backend is instructed to emit, plus the decorated variants
// smaller models tend to produce anyway.
var sectionMarkers = []struct {
	prefix  string
	section section
}{
	{"corrected:", sectionCorrected},
	{"correction:", sectionCorrected},
	{"tip:", sectionTip},
	{"explanation:", sectionTip},
	{"reply:", sectionReply},
}

// ParseReply extracts the correction, explanation, and reply sections from
// raw model text. Best-effort positional parsing: sections may be missing,
// span multiple lines, or carry markdown/emoji decoration.
func ParseReply(raw string) ParsedReply {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ParsedReply{Fallback: true}
	}

	var out ParsedReply
	current := sectionNone
	seen := false

	appendTo := func(s section, content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		target := map[section]*string{
			sectionCorrected: &out.Corrected,
			sectionTip:       &out.Tip,
			sectionReply:     &out.Reply,
		}[s]
		if target == nil {
			return
		}
		if *target != "" {
			*target += " "
		}
		*target += content
	}

	for _, line := range strings.Split(text, "\n") {
		stripped := stripDecoration(line)
		matched := false
		lower := strings.ToLower(stripped)
		for _, m := range sectionMarkers {
			if strings.HasPrefix(lower, m.prefix) {
				current = m.section
				seen = true
				appendTo(current, stripped[len(m.prefix):])
				matched = true
				break
			}
		}
		if !matched && current != sectionNone {
			appendTo(current, stripped)
		}
	}

	if !seen {
		return ParsedReply{Reply: text, Fallback: true}
	}
	if out.Reply == "" && out.Corrected == "" && out.Tip == "" {
		return ParsedReply{Reply: text, Fallback: true}
	}
	return out
}

// stripDecoration drops the markdown bold and emoji prefixes models wrap
// around section markers.
func stripDecoration(line string) string {
	s := strings.TrimSpace(line)
	for _, prefix := range []string{"✅", "\U0001f4a1", "\U0001f4ac", "-", "*"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
	}
	s = strings.ReplaceAll(s, "**", "")
	return strings.TrimSpace(s)
}

// parseLevel pulls a proficiency level word out of a level-assessment reply.
func parseLevel(raw string) (string, bool) {
	lower := strings.ToLower(raw)
	for _, level := range []string{"beginner", "intermediate", "advanced"} {
		if strings.Contains(lower, level) {
			return level, true
		}
	}
	return "", false
}
