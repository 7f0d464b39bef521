package chunk

import (
	"regexp"
	"strings"

	"noteforge/internal/domain"
)

// declPattern recognizes one declaration form; name is the capture group
// holding the declared identifier.
type declPattern struct {
	re       *regexp.Regexp
	unitKind string
}

var declPatternsByLanguage = map[string][]declPattern{
	"go": {
		{regexp.MustCompile(`(?m)^func\s+(?:\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)\s*\(`), "function"},
		{regexp.MustCompile(`(?m)^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+(?:struct|interface)\s*{`), "type"},
	},
	"python": {
		{regexp.MustCompile(`(?m)^def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`), "function"},
		{regexp.MustCompile(`(?m)^class\s+([A-Za-z_][A-Za-z0-9_]*)\s*[:\(]`), "class"},
	},
	"javascript": {
		{regexp.MustCompile(`(?m)^function\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`), "function"},
		{regexp.MustCompile(`(?m)^(?:export\s+)?class\s+([A-Za-z_][A-Za-z0-9_]*)`), "class"},
		{regexp.MustCompile(`(?m)^(?:export\s+)?const\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(?:\([^)]*\)|[A-Za-z_][A-Za-z0-9_]*)\s*=>`), "function"},
	},
	"typescript": {
		{regexp.MustCompile(`(?m)^(?:export\s+)?function\s+([A-Za-z_][A-Za-z0-9_]*)\s*[(<]`), "function"},
		{regexp.MustCompile(`(?m)^(?:export\s+)?(?:abstract\s+)?class\s+([A-Za-z_][A-Za-z0-9_]*)`), "class"},
		{regexp.MustCompile(`(?m)^(?:export\s+)?interface\s+([A-Za-z_][A-Za-z0-9_]*)`), "interface"},
		{regexp.MustCompile(`(?m)^(?:export\s+)?type\s+([A-Za-z_][A-Za-z0-9_]*)\s*=`), "type"},
		{regexp.MustCompile(`(?m)^(?:export\s+)?const\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(?:\([^)]*\)|[A-Za-z_][A-Za-z0-9_]*)\s*=>`), "function"},
	},
	"rust": {
		{regexp.MustCompile(`(?m)^(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?fn\s+([A-Za-z_][A-Za-z0-9_]*)`), "function"},
		{regexp.MustCompile(`(?m)^(?:pub(?:\([^)]*\))?\s+)?struct\s+([A-Za-z_][A-Za-z0-9_]*)`), "struct"},
		{regexp.MustCompile(`(?m)^(?:pub(?:\([^)]*\))?\s+)?enum\s+([A-Za-z_][A-Za-z0-9_]*)`), "enum"},
		{regexp.MustCompile(`(?m)^impl(?:<[^>]*>)?\s+(?:[A-Za-z_][A-Za-z0-9_:<>, ]*\s+for\s+)?([A-Za-z_][A-Za-z0-9_]*)`), "impl"},
		{regexp.MustCompile(`(?m)^(?:pub(?:\([^)]*\))?\s+)?mod\s+([A-Za-z_][A-Za-z0-9_]*)`), "module"},
	},
}

var defaultDeclPatterns = concatDeclPatterns(
	declPatternsByLanguage["go"],
	declPatternsByLanguage["rust"],
	declPatternsByLanguage["python"],
	declPatternsByLanguage["typescript"],
)

// detectLanguage sniffs source content for the language whose declaration
// forms it carries, used when no explicit language hint reached the chunker.
func detectLanguage(text string) string {
	switch {
	case strings.Contains(text, "fn ") && (strings.Contains(text, "let mut ") || strings.Contains(text, "impl ") || strings.Contains(text, "-> ")):
		return "rust"
	case strings.Contains(text, "package ") && strings.Contains(text, "func "):
		return "go"
	case strings.Contains(text, "def ") && strings.Contains(text, ":"):
		return "python"
	case strings.Contains(text, "interface ") || strings.Contains(text, ": string") || strings.Contains(text, ": number"):
		return "typescript"
	case strings.Contains(text, "function ") || strings.Contains(text, "=>"):
		return "javascript"
	default:
		return ""
	}
}

func concatDeclPatterns(groups ...[]declPattern) []declPattern {
	var out []declPattern
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// syntacticChunker splits source code into one chunk per top-level
// declaration (function/type/class), tagging each with the declared name so
// retrieval can cite "function Foo" instead of an anonymous line range.
// Text preceding the first declaration (imports, package header, file
// banner) becomes its own chunk with UnitKind "preamble".
type syntacticChunker struct {
	patterns []declPattern
	language string
}

func newSyntacticChunker(cfg Config) (Chunker, error) {
	var patterns []declPattern
	if cfg.Language != "" {
		var ok bool
		if patterns, ok = declPatternsByLanguage[strings.ToLower(cfg.Language)]; !ok {
			patterns = defaultDeclPatterns
		}
	}
	return &syntacticChunker{patterns: patterns, language: cfg.Language}, nil
}

type declMatch struct {
	start    int
	unitKind string
	name     string
}

func (s *syntacticChunker) Chunk(text string) ([]domain.Chunk, error) {
	norm := strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(norm) == "" {
		return nil, nil
	}

	patterns := s.patterns
	language := s.language
	if len(patterns) == 0 {
		language = detectLanguage(norm)
		if patterns = declPatternsByLanguage[language]; len(patterns) == 0 {
			patterns = defaultDeclPatterns
		}
	}

	var matches []declMatch
	for _, p := range patterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(norm, -1) {
			matches = append(matches, declMatch{start: m[0], unitKind: p.unitKind, name: norm[m[2]:m[3]]})
		}
	}
	if len(matches) == 0 {
		return []domain.Chunk{{
			Ordinal:  0,
			Text:     norm,
			Start:    0,
			End:      len(norm),
			Metadata: domain.ChunkMetadata{Type: string(KindSyntactic), UnitKind: "file", Language: language},
		}}, nil
	}
	sortMatchesByStart(matches)

	var out []domain.Chunk
	ordinal := 0
	if matches[0].start > 0 {
		preamble, lead := trimSpanOffsets(norm[:matches[0].start])
		if preamble != "" {
			out = append(out, domain.Chunk{
				Ordinal: ordinal, Text: preamble, Start: lead, End: lead + len(preamble),
				Metadata: domain.ChunkMetadata{Type: string(KindSyntactic), UnitKind: "preamble", Language: language},
			})
			ordinal++
		}
	}
	for i, m := range matches {
		end := len(norm)
		if i+1 < len(matches) {
			end = matches[i+1].start
		}
		body := strings.TrimRight(norm[m.start:end], "\n")
		if strings.TrimSpace(body) == "" {
			continue
		}
		out = append(out, domain.Chunk{
			Ordinal: ordinal, Text: body, Start: m.start, End: m.start + len(body),
			Metadata: domain.ChunkMetadata{Type: string(KindSyntactic), UnitKind: m.unitKind, UnitName: m.name, Language: language},
		})
		ordinal++
	}
	return out, nil
}

// trimSpanOffsets trims leading/trailing whitespace and returns the byte
// offset the trimmed text now starts at, so callers can keep Start/End
// consistent with the trimmed Text.
func trimSpanOffsets(s string) (trimmed string, lead int) {
	left := strings.TrimLeft(s, " \t\n\r")
	lead = len(s) - len(left)
	trimmed = strings.TrimRight(left, " \t\n\r")
	return trimmed, lead
}

func sortMatchesByStart(m []declMatch) {
	for i := 1; i < len(m); i++ {
		for j := i; j > 0 && m[j].start < m[j-1].start; j-- {
			m[j], m[j-1] = m[j-1], m[j]
		}
	}
}
