package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultNarrator is the speaker assigned to untagged text.
const DefaultNarrator = "Narrador"

// Segment is one attributed block of speech text.
type Segment struct {
	Speaker string `json:"speaker" yaml:"speaker"`
	Content string `json:"content" yaml:"content"`
}

// Speakable returns the content with formatting glyphs removed, ready for a
// synthesis engine. An empty result means the segment should be skipped.
func (s Segment) Speakable() string {
	return strings.TrimSpace(StripMarkdown(s.Content))
}

// markdownGlyphs are the formatting markers a speech engine would read aloud.
var markdownGlyphs = strings.NewReplacer("**", "", "#", "", "_", "", "`", "")

// StripMarkdown removes emphasis, heading and code markers from text.
func StripMarkdown(text string) string {
	return markdownGlyphs.Replace(text)
}

// Parse splits a transcript into segments.
//
// A block starts at "[label]", skips any colons or whitespace that follow,
// and runs until the next '[' or the end of input. Bold markers are removed
// before matching so "**[Dr. Castillo]**" is still recognised as a tag. When
// no tag is found the whole text becomes a single DefaultNarrator segment.
func Parse(text string) []Segment {
	clean := strings.ReplaceAll(text, "**", "")

	var segments []Segment
	pos := 0
	for pos < len(clean) {
		open := strings.IndexByte(clean[pos:], '[')
		if open < 0 {
			break
		}
		open += pos

		closing := strings.IndexByte(clean[open+1:], ']')
		if closing < 0 {
			// no later '[' can close either
			break
		}
		closing += open + 1

		start := skipSeparators(clean, closing+1)
		end := len(clean)
		if next := strings.IndexByte(clean[start:], '['); next >= 0 {
			end = start + next
		}

		segments = append(segments, Segment{
			Speaker: strings.TrimSpace(clean[open+1 : closing]),
			Content: strings.TrimSpace(clean[start:end]),
		})
		pos = end
	}

	if len(segments) == 0 {
		return []Segment{{
			Speaker: DefaultNarrator,
			Content: strings.TrimSpace(text),
		}}
	}

	return segments
}

// skipSeparators returns the offset of the first rune at or after i that is
// neither a colon nor whitespace.
func skipSeparators(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r != ':' && !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

// Speakers returns the distinct speaker labels in order of first appearance.
func Speakers(segments []Segment) []string {
	seen := make(map[string]bool, len(segments))
	var speakers []string
	for _, s := range segments {
		if seen[s.Speaker] {
			continue
		}
		seen[s.Speaker] = true
		speakers = append(speakers, s.Speaker)
	}
	return speakers
}
