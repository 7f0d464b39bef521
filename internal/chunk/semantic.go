package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	headingLineRe  = regexp.MustCompile(`^#{1,6}\s`)
	hrLineRe       = regexp.MustCompile(`^(-{3,}|\*{3,}|_{3,})$`)
	bulletLineRe   = regexp.MustCompile(`^[-*+]\s`)
	numberedLineRe = regexp.MustCompile(`^\d+[.)]\s`)
)

type mdElementKind int

const (
	mdText mdElementKind = iota
	mdHeading
	mdFence
	mdList
	mdQuote
	mdHR
)

type mdElement struct {
	kind mdElementKind
	text string
}

func classifyLine(line string) mdElementKind {
	trim := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trim, "```"):
		return mdFence
	case headingLineRe.MatchString(trim):
		return mdHeading
	case hrLineRe.MatchString(trim):
		return mdHR
	case bulletLineRe.MatchString(trim):
		return mdList
	case numberedLineRe.MatchString(trim):
		return mdList
	case strings.HasPrefix(trim, ">"):
		return mdQuote
	default:
		return mdText
	}
}

// markdownElements scans line-by-line and aggregates runs of like lines into
// elements: a fenced code block is one atomic element (closing fence
// included), consecutive list items aggregate, consecutive blockquote lines
// aggregate, and text lines aggregate up to a blank line.
func markdownElements(text string) []mdElement {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var out []mdElement
	var run []string
	runKind := mdText
	flushRun := func() {
		if joined := strings.Join(run, "\n"); strings.TrimSpace(joined) != "" {
			out = append(out, mdElement{kind: runKind, text: joined})
		}
		run = nil
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			flushRun()
			continue
		}
		kind := classifyLine(line)
		switch kind {
		case mdFence:
			flushRun()
			fence := []string{line}
			for i++; i < len(lines); i++ {
				fence = append(fence, lines[i])
				if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
					break
				}
			}
			out = append(out, mdElement{kind: mdFence, text: strings.Join(fence, "\n")})
		case mdHeading, mdHR:
			flushRun()
			out = append(out, mdElement{kind: kind, text: strings.TrimRight(line, " \t")})
		default:
			if len(run) > 0 && runKind != kind {
				flushRun()
			}
			runKind = kind
			run = append(run, line)
		}
	}
	flushRun()
	return out
}

// semanticSplit is the markdown-aware strategy: headings and horizontal
// rules force a chunk boundary, fenced code blocks stay atomic, list items
// and blockquote lines aggregate, and everything packs into size-bounded
// chunks. An oversize text element delegates to paragraph splitting.
func semanticSplit(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if size <= 0 {
		size = 1000
	}

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if s := cur.String(); strings.TrimSpace(s) != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}
	appendEl := func(s string) {
		if cur.Len() > 0 {
			cur.WriteString("\n")
		}
		cur.WriteString(s)
	}

	for _, el := range markdownElements(text) {
		n := utf8.RuneCountInString(el.text)
		switch el.kind {
		case mdHeading, mdHR:
			flush()
			appendEl(el.text)
		case mdFence:
			// Atomic even when oversize: a fence is never split.
			if cur.Len() > 0 && utf8.RuneCountInString(cur.String())+n >= size {
				flush()
			}
			appendEl(el.text)
		case mdText:
			if n >= size {
				flush()
				chunks = append(chunks, paragraphSplit(el.text, size, overlap)...)
				continue
			}
			if cur.Len() > 0 && utf8.RuneCountInString(cur.String())+n >= size {
				flush()
			}
			appendEl(el.text)
		default: // list, quote
			if cur.Len() > 0 && utf8.RuneCountInString(cur.String())+n >= size {
				flush()
			}
			appendEl(el.text)
		}
	}
	flush()
	return chunks
}
