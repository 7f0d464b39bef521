package domain

// ChunkMetadata carries the syntactic/semantic classification of a chunk,
// populated by the chunker that produced it (not every field applies to
// every strategy).
type ChunkMetadata struct {
	Type     string // kind of the chunker that produced it, e.g. "semantic", "syntactic"
	UnitKind string // e.g. "function", "class", "struct", "module" (syntactic chunker)
	UnitName string
	Language string
}

// Chunk is a (note, ordinal) text slice with byte offsets [Start, End) into
// its source. Start and End always fall on UTF-8 rune boundaries. Chunk is
// not persisted directly — it materializes into Embedding rows.
type Chunk struct {
	Ordinal  int
	Text     string
	Start    int
	End      int
	Metadata ChunkMetadata
}
