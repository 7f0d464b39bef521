package chunk

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var blankLineRe = regexp.MustCompile(`\n\s*\n+`)

// sentenceAbbrevs are tokens whose trailing period does not end a sentence.
var sentenceAbbrevs = map[string]bool{
	"dr": true, "mr": true, "mrs": true, "ms": true, "prof": true,
	"sr": true, "jr": true, "st": true, "vs": true, "etc": true,
	"e.g": true, "i.e": true, "inc": true, "ltd": true, "co": true,
	"corp": true, "approx": true, "no": true, "fig": true,
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

// isAbbreviation reports whether the text before a period ends in a known
// abbreviation token.
func isAbbreviation(prefix string) bool {
	idx := strings.LastIndexFunc(prefix, unicode.IsSpace)
	word := prefix[idx+1:]
	word = strings.TrimLeft(word, "(\"'")
	word = strings.TrimRight(word, ".")
	return sentenceAbbrevs[strings.ToLower(word)]
}

// sentencesOf splits text at terminator runs (.!?) followed by whitespace,
// suppressing boundaries after recognized abbreviations and after digits
// (decimals like "3.5" and numbered references).
func sentencesOf(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i
		for j+1 < len(text) && (text[j+1] == '.' || text[j+1] == '!' || text[j+1] == '?') {
			j++
		}
		if j+1 < len(text) && !isSpaceByte(text[j+1]) {
			i = j
			continue
		}
		if c == '.' && i == j {
			if i > 0 && text[i-1] >= '0' && text[i-1] <= '9' {
				continue
			}
			if isAbbreviation(text[start:i]) {
				continue
			}
		}
		if s := strings.TrimSpace(text[start : j+1]); s != "" {
			out = append(out, s)
		}
		start = j + 1
		i = j
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func paragraphsOf(text string) []string {
	raw := blankLineRe.Split(strings.TrimSpace(text), -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sentenceSplit is the sentence strategy: group sentences up to size, with
// any single sentence longer than size cut at rune boundaries first.
func sentenceSplit(text string, size, overlap int) []string {
	var units []string
	for _, s := range sentencesOf(text) {
		if utf8.RuneCountInString(s) > size {
			units = append(units, fixedSplit(s, size, overlap)...)
			continue
		}
		units = append(units, s)
	}
	return groupIntoChunks(units, size, overlap)
}

// paragraphSplit is the paragraph strategy: group whole paragraphs up to
// size, delegating any single oversize paragraph to the sentence strategy.
func paragraphSplit(text string, size, overlap int) []string {
	var units []string
	for _, p := range paragraphsOf(text) {
		if utf8.RuneCountInString(p) > size {
			units = append(units, sentenceSplit(p, size, overlap)...)
			continue
		}
		units = append(units, p)
	}
	return groupIntoChunks(units, size, overlap)
}

// clipOverlapTail returns the last want runes of chunk, used to seed the
// next chunk so adjacent chunks share trailing/leading context.
func clipOverlapTail(chunk string, want int) string {
	if want <= 0 || chunk == "" {
		return ""
	}
	n := utf8.RuneCountInString(chunk)
	if want >= n {
		return chunk
	}
	idx := 0
	skip := n - want
	for i := 0; i < skip; i++ {
		_, w := utf8.DecodeRuneInString(chunk[idx:])
		idx += w
	}
	return chunk[idx:]
}

// groupIntoChunks packs ordered text units (sentences, paragraphs, semantic
// segments) into chunks around size runes, carrying the trailing overlap
// runes of a closed chunk into the next one.
func groupIntoChunks(units []string, size, overlap int) []string {
	if len(units) == 0 {
		return nil
	}
	if size <= 0 {
		size = 500
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		s := cur.String()
		chunks = append(chunks, s)
		cur.Reset()
		if tail := clipOverlapTail(s, overlap); tail != "" {
			cur.WriteString(tail)
		}
	}

	for i, u := range units {
		if u == "" {
			continue
		}
		candidate := u
		if cur.Len() > 0 {
			candidate = cur.String() + "\n" + u
		}
		if cur.Len() > 0 && utf8.RuneCountInString(candidate) > size {
			flush()
			if cur.Len() > 0 {
				cur.WriteString("\n")
			}
		} else if cur.Len() > 0 {
			cur.WriteString("\n")
		}
		cur.WriteString(u)
		if i == len(units)-1 {
			flush()
		}
	}
	return chunks
}
