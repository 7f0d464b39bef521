package chunk

import "unicode/utf8"

// fixedSplit slides a fixed-size rune window across text with the given
// overlap. Used directly for KindSlidingWindow and as KindRecursive's final
// stage, so any segment still too large after sentence grouping gets cut to
// size; a segment already within size comes back as a single chunk.
func fixedSplit(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	step := size - overlap
	if step <= 0 {
		step = 1
	}

	idxs := make([]int, 0, utf8.RuneCountInString(text)+1)
	idxs = append(idxs, 0)
	for i := 0; i < len(text); {
		_, w := utf8.DecodeRuneInString(text[i:])
		i += w
		idxs = append(idxs, i)
	}

	var chunks []string
	for start := 0; start < len(idxs)-1; start += step {
		end := start + size
		if end >= len(idxs)-1 {
			end = len(idxs) - 1
		}
		if end <= start {
			break
		}
		chunks = append(chunks, text[idxs[start]:idxs[end]])
		if end == len(idxs)-1 {
			break
		}
	}
	return chunks
}
