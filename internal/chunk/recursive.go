package chunk

// recursiveSplit layers strategies top-down: markdown sections, then
// size-grouped paragraphs within each section, then size-grouped sentences
// within each paragraph chunk, with a final fixed rune window guaranteeing
// nothing oversized survives (e.g. a heading-free wall of text with no
// sentence punctuation).
func recursiveSplit(text string, size, overlap int) []string {
	var out []string
	for _, section := range markdownSections(text) {
		paragraphChunks := groupIntoChunks(paragraphsOf(section), size, overlap)
		if len(paragraphChunks) == 0 {
			paragraphChunks = []string{section}
		}
		for _, pc := range paragraphChunks {
			sentenceChunks := groupIntoChunks(sentencesOf(pc), size, overlap)
			if len(sentenceChunks) == 0 {
				sentenceChunks = []string{pc}
			}
			for _, sc := range sentenceChunks {
				out = append(out, fixedSplit(sc, size, overlap)...)
			}
		}
	}
	return out
}
