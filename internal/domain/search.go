package domain

import "github.com/google/uuid"

// Script is the detected (or hinted) primary script of a query string. It
// selects the full-text-search strategy in internal/search.
type Script string

const (
	ScriptLatin      Script = "latin"
	ScriptCJK        Script = "cjk"
	ScriptCyrillic   Script = "cyrillic"
	ScriptArabic     Script = "arabic"
	ScriptGreek      Script = "greek"
	ScriptHebrew     Script = "hebrew"
	ScriptDevanagari Script = "devanagari"
	ScriptThai       Script = "thai"
	ScriptEmoji      Script = "emoji"
	ScriptSymbol     Script = "symbol"
	ScriptMixed      Script = "mixed"
	ScriptUnknown    Script = "unknown"
)

// FTSStrategy names the full-text-search query shape chosen for a Script.
type FTSStrategy string

const (
	FTSStrategyEnglish FTSStrategy = "fts_english"
	FTSStrategyBigram  FTSStrategy = "bigram"
	FTSStrategyCJK     FTSStrategy = "cjk"
	FTSStrategyTrigram FTSStrategy = "trigram"
	FTSStrategySimple  FTSStrategy = "fts_simple"
)

// SearchHit is one ranked result from any retrieval strategy.
type SearchHit struct {
	NoteID       uuid.UUID
	Score        float64
	Snippet      string
	Title        string
	Tags         []string
	ChainRoot    *uuid.UUID
	ChainMembers []uuid.UUID
}

// StrictFilter is a structured predicate over concept membership, applied
// post-fusion. MatchNone short-circuits the search to an empty result.
type StrictFilter struct {
	RequiredConceptIDs []uuid.UUID
	AnyConceptIDs      []uuid.UUID
	ExcludedConceptIDs []uuid.UUID
	MinTagCount        int
	MatchNone          bool
}

// UnifiedFilter is reserved for a future richer filter grammar that would
// subsume StrictFilter; per spec.md's open question, StrictFilter remains
// the one implemented predicate and this is a documented alias point.
type UnifiedFilter = StrictFilter

// SearchConfig carries the knobs for a single hybrid search invocation.
type SearchConfig struct {
	FTSWeight       float64
	SemanticWeight  float64
	ExcludeArchived bool
	MinScore        float64
	EmbeddingSetID  *uuid.UUID
	Strict          *StrictFilter
	LangHint        string
	ScriptHint      Script
	Deduplication   bool
	ExpandChains    bool
}
