package chunk

import (
	"regexp"
	"strings"
)

var markdownHeadingRe = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+?)\s*$`)

// markdownSections splits text at heading lines, returning each heading and
// its body as separate units so KindRecursive can group each independently.
// Text with no headings comes back as a single section, falling through to
// paragraph/sentence grouping unchanged.
func markdownSections(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	idxs := markdownHeadingRe.FindAllStringSubmatchIndex(text, -1)
	if len(idxs) == 0 {
		return []string{text}
	}

	var out []string
	for i, m := range idxs {
		end := len(text)
		if i+1 < len(idxs) {
			end = idxs[i+1][0]
		}
		if heading := strings.TrimSpace(text[m[0]:m[1]]); heading != "" {
			out = append(out, heading)
		}
		if body := strings.TrimSpace(text[m[1]:end]); body != "" {
			out = append(out, body)
		}
	}
	return out
}
