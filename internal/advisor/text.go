package advisor

import "strings"

// markdownStripper removes characters that corrupt Telegram Markdown
// rendering when the model emits unbalanced formatting.
var markdownStripper = strings.NewReplacer(
	"*", "",
	"_", "",
	"`", "",
	"~", "",
	"[", "",
	"]", "",
	"(", "",
	")", "",
)

// Sanitize strips formatting characters that could corrupt rich-text
// rendering downstream.
func Sanitize(s string) string {
	return markdownStripper.Replace(s)
}

// SplitMessage splits text into chunks of at most max bytes, breaking only
// at sentence boundaries: after ".", "!" or "?" followed by a space, or
// after a newline. Concatenating the chunks reproduces the input exactly.
// A single sentence longer than max is hard-wrapped on rune boundaries as a
// last resort.
func SplitMessage(text string, max int) []string {
	if len(text) <= max {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, sentence := range splitSentences(text) {
		if current.Len()+len(sentence) > max {
			flush()
		}
		if len(sentence) > max {
			parts := hardWrap(sentence, max)
			for _, part := range parts[:len(parts)-1] {
				chunks = append(chunks, part)
			}
			// The tail may still share a chunk with following sentences.
			current.WriteString(parts[len(parts)-1])
			continue
		}
		current.WriteString(sentence)
	}
	flush()

	return chunks
}

// splitSentences cuts text after each sentence terminator, keeping the
// terminator (and its trailing space) with the sentence it ends. All
// boundary bytes are ASCII, so a byte scan is safe on UTF-8 input.
func splitSentences(text string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			parts = append(parts, text[start:i+1])
			start = i + 1
		case '.', '!', '?':
			if i+1 < len(text) && text[i+1] == ' ' {
				parts = append(parts, text[start:i+2])
				start = i + 2
				i++
			}
		}
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}

// hardWrap splits s into max-sized pieces without breaking UTF-8 runes.
func hardWrap(s string, max int) []string {
	var parts []string
	var current strings.Builder
	for _, r := range s {
		if current.Len()+len(string(r)) > max {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
