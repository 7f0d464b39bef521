package domain

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingSetMode selects whether set membership is curated manually or
// derived automatically from Criteria on refresh.
type EmbeddingSetMode string

const (
	EmbeddingSetModeManual EmbeddingSetMode = "manual"
	EmbeddingSetModeAuto   EmbeddingSetMode = "auto"
)

// IndexStatus tracks the freshness of an embedding set's index.
type IndexStatus string

const (
	IndexStatusPending  IndexStatus = "pending"
	IndexStatusBuilding IndexStatus = "building"
	IndexStatusReady    IndexStatus = "ready"
	IndexStatusStale    IndexStatus = "stale"
	IndexStatusFailed   IndexStatus = "failed"
)

// Criteria is the structured predicate an auto-mode EmbeddingSet
// re-evaluates against the note corpus on refresh.
type Criteria struct {
	IncludeAll      bool
	ExcludeArchived bool
	Tags            []string
	Collections     []uuid.UUID
	FTSQuery        string
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}

// EmbeddingSet is a named, curated subcollection of notes indexed under one
// EmbeddingConfig.
type EmbeddingSet struct {
	ID                uuid.UUID
	Slug              string
	Name              string
	Purpose           string
	Mode              EmbeddingSetMode
	Criteria          Criteria
	EmbeddingConfigID uuid.UUID
	TruncateDim       *int
	IsSystem          bool
	IsActive          bool
	IndexStatus       IndexStatus
	DocumentCount     int
	EmbeddingCount    int
	LastRefreshAt     *time.Time
	LastIndexedAt     *time.Time
}

// MembershipType records why a note belongs to an embedding set.
type MembershipType string

const (
	MembershipAuto          MembershipType = "auto"
	MembershipManualInclude MembershipType = "manual_include"
	MembershipManualExclude MembershipType = "manual_exclude"
)

// EmbeddingSetMember is a (set, note) membership row.
type EmbeddingSetMember struct {
	EmbeddingSetID uuid.UUID
	NoteID         uuid.UUID
	MembershipType MembershipType
	AddedAt        time.Time
	AddedBy        *uuid.UUID
}

// HasHierarchicalTag reports whether tag set contains want or any tag of the
// form "want/...". Matches spec.md's "foo matches foo and foo/..." rule used
// by both auto-set criteria evaluation and the embed-set health checks.
func HasHierarchicalTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
		if len(t) > len(want) && t[:len(want)] == want && t[len(want)] == '/' {
			return true
		}
	}
	return false
}

// HealthScore implements spec.md §4.6: 100 * max(0, (doc-stale-orphaned-missing)/doc),
// zero-doc sets score 100.
func HealthScore(docCount, stale, orphaned, missing int) float64 {
	if docCount <= 0 {
		return 100
	}
	healthy := float64(docCount-stale-orphaned-missing) / float64(docCount)
	if healthy < 0 {
		healthy = 0
	}
	return 100 * healthy
}
