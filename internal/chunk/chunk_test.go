package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentenceChunker_OffsetsRoundTrip(t *testing.T) {
	text := "Dr. Smith went home. He arrived at 3.5pm. The dog barked loudly outside."
	c, err := New(Config{Kind: KindSentence, Size: 40})
	require.NoError(t, err)
	chunks, err := c.Chunk(text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		require.GreaterOrEqual(t, ch.Start, 0)
		require.LessOrEqual(t, ch.End, len(text))
		require.LessOrEqual(t, ch.Start, ch.End)
	}
}

func TestSlidingWindowChunker_UTF8Safe(t *testing.T) {
	text := strings.Repeat("héllo wörld café日本語 ", 20)
	c, err := New(Config{Kind: KindSlidingWindow, Size: 30, Overlap: 10})
	require.NoError(t, err)
	chunks, err := c.Chunk(text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		require.True(t, validUTF8Boundary(text, ch.Start))
		require.True(t, validUTF8Boundary(text, ch.End))
	}
}

func validUTF8Boundary(s string, i int) bool {
	if i < 0 || i > len(s) {
		return false
	}
	if i == 0 || i == len(s) {
		return true
	}
	return s[i]&0xC0 != 0x80
}

func TestSyntacticChunker_SplitsGoFunctions(t *testing.T) {
	src := `package foo

import "fmt"

func Alpha() {
	fmt.Println("alpha")
}

func Beta(x int) int {
	return x + 1
}
`
	c, err := New(Config{Kind: KindSyntactic, Language: "go"})
	require.NoError(t, err)
	chunks, err := c.Chunk(src)
	require.NoError(t, err)
	require.Len(t, chunks, 3) // preamble + Alpha + Beta

	require.Equal(t, "preamble", chunks[0].Metadata.UnitKind)
	require.Equal(t, "Alpha", chunks[1].Metadata.UnitName)
	require.Equal(t, "function", chunks[1].Metadata.UnitKind)
	require.Equal(t, "Beta", chunks[2].Metadata.UnitName)

	for _, ch := range chunks {
		require.Equal(t, ch.Text, src[ch.Start:ch.End])
	}
}

func TestSyntacticChunker_SniffsRustContent(t *testing.T) {
	src := "pub struct Token {\n\tkind: u8,\n}\n\npub fn lex(input: &str) -> Vec<Token> {\n\tlet mut out = Vec::new();\n\tout\n}\n"
	c, err := New(Config{Kind: KindSyntactic})
	require.NoError(t, err)
	chunks, err := c.Chunk(src)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, "rust", chunks[0].Metadata.Language)
	require.Equal(t, "struct", chunks[0].Metadata.UnitKind)
	require.Equal(t, "Token", chunks[0].Metadata.UnitName)
	require.Equal(t, "function", chunks[1].Metadata.UnitKind)
	require.Equal(t, "lex", chunks[1].Metadata.UnitName)
}

func TestSyntacticChunker_NoDeclarationsReturnsWholeFile(t *testing.T) {
	c, err := New(Config{Kind: KindSyntactic, Language: "go"})
	require.NoError(t, err)
	chunks, err := c.Chunk("just some notes, no code here")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, "file", chunks[0].Metadata.UnitKind)
}

func TestFixedSplit_BasicAndOverlap(t *testing.T) {
	require.Equal(t, []string{"abcde", "fghij", "klmno", "pqrst", "uvwxy", "z"}, fixedSplit("abcdefghijklmnopqrstuvwxyz", 5, 0))
	require.Equal(t, []string{"abcd", "cdef", "efg"}, fixedSplit("abcdefg", 4, 2))
	require.Nil(t, fixedSplit("", 10, 0))
}

func TestGroupIntoChunks_RespectsOverlap(t *testing.T) {
	got := groupIntoChunks([]string{"one", "two", "three", "four"}, 9, 3)
	require.NotEmpty(t, got)
	for _, c := range got {
		require.LessOrEqual(t, len([]rune(c)), 9+3) // tail carry can push a chunk slightly over size
	}
}

func TestSentencesOf_SuppressesAbbreviationsAndDecimals(t *testing.T) {
	got := sentencesOf("Dr. Smith went home. He arrived at 3.5pm sharp. The dog barked.")
	require.Equal(t, []string{
		"Dr. Smith went home.",
		"He arrived at 3.5pm sharp.",
		"The dog barked.",
	}, got)
}

func TestSemanticSplit_HeadingsForceBoundaries(t *testing.T) {
	text := "# Intro\n\nSome intro prose.\n\n# Details\n\nDetail prose here."
	got := semanticSplit(text, 1000, 0)
	require.Len(t, got, 2)
	require.True(t, strings.HasPrefix(got[0], "# Intro"))
	require.True(t, strings.HasPrefix(got[1], "# Details"))
}

func TestSemanticSplit_KeepsCodeFencesAtomic(t *testing.T) {
	fence := "```go\nfunc main() {\n\tprintln(\"hi\")\n}\n```"
	text := "Before the code.\n\n" + fence + "\n\nAfter the code."
	got := semanticSplit(text, 25, 0)
	require.NotEmpty(t, got)
	joined := 0
	for _, c := range got {
		require.NotEmpty(t, strings.TrimSpace(c))
		opens := strings.Count(c, "```")
		require.True(t, opens == 0 || opens == 2, "a chunk never holds half a fence: %q", c)
		if opens == 2 {
			joined++
		}
	}
	require.Equal(t, 1, joined)
}

func TestSemanticSplit_AggregatesListItems(t *testing.T) {
	text := "- first item\n- second item\n- third item"
	got := semanticSplit(text, 1000, 0)
	require.Len(t, got, 1)
}

func TestSlidingWindow_OverlapAtLeastSizeStillProgresses(t *testing.T) {
	c, err := New(Config{Kind: KindSlidingWindow, Size: 10, Overlap: 10})
	require.NoError(t, err)
	chunks, err := c.Chunk(strings.Repeat("abcdefghij", 10))
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	require.Less(t, len(chunks), 200, "window must advance at least one rune per step")
}

func TestRecursiveChunker_ProducesOffsets(t *testing.T) {
	text := "# Title\n\nFirst paragraph here. It has two sentences.\n\n## Sub\n\nSecond paragraph, also here."
	c, err := New(Config{Kind: KindRecursive, Size: 50})
	require.NoError(t, err)
	chunks, err := c.Chunk(text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		require.LessOrEqual(t, ch.End, len(text))
	}
}
