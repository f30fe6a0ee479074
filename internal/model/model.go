// Package model defines the persisted shapes of the RAG ingestion and query
// engine: documents, chunks, entities, relationships, mentions, and
// enrichment tasks.
package model

import "time"

// EnrichmentStatus tracks a chunk's enrichment lifecycle.
type EnrichmentStatus string

const (
	EnrichmentNone     EnrichmentStatus = "none"
	EnrichmentPending  EnrichmentStatus = "pending"
	EnrichmentEnriched EnrichmentStatus = "enriched"
	EnrichmentFailed   EnrichmentStatus = "failed"
)

// TaskStatus tracks an EnrichmentTask's lifecycle.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskDead       TaskStatus = "dead"
)

// Document is the persisted representation of one ingested item.
//
// Identity is (Collection, IdentityKey); BaseID is stable across identity
// conflicts. Exactly one of RawData / RawKey is set (never both).
type Document struct {
	ID           string
	Collection   string
	IdentityKey  string
	BaseID       string
	Source       string
	DocType      string
	RepoID       string
	RepoURL      string
	Path         string
	Lang         string
	ItemURL      string
	MimeType     string
	SizeBytes    int64
	Summary      string
	PayloadChecksum string
	RawData      []byte
	RawKey       string
	IngestedAt   time.Time
	UpdatedAt    time.Time
}

// Chunk is a text segment of a Document.
type Chunk struct {
	ID               string
	DocumentID       string
	ChunkIndex       int
	Text             string
	Embedding        []float32
	DocType          string
	RepoID           string
	Path             string
	Lang             string
	ItemURL          string
	Tier1Meta        map[string]any
	Tier2Meta        map[string]any
	Tier3Meta        map[string]any
	EnrichmentStatus EnrichmentStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ExternalID formats the wire identifier for a chunk: "<chunkUUID>:<index>".
func (c Chunk) ExternalID() string {
	return c.ID + ":" + itoa(c.ChunkIndex)
}

// Entity is a node in the knowledge graph.
type Entity struct {
	ID           string
	Name         string
	Type         string
	Description  string
	MentionCount int
	LastSeen     time.Time
}

// EntityRelationship is a directed, typed edge between two entities.
type EntityRelationship struct {
	ID                 string
	SourceEntityID     string
	TargetEntityID     string
	RelationshipType   string
	Description        string
	CreatedAt          time.Time
}

// DocumentEntityMention maps a document to an entity with a mention count.
type DocumentEntityMention struct {
	DocumentID   string
	EntityID     string
	MentionCount int
}

// EnrichmentTask is one row per chunk awaiting asynchronous enrichment.
// Claiming a task still surfaces its owning document's full chunk set (see
// postgres.ClaimedTask), since extraction reads a document's chunks as a
// unit, but the queue's unit of work, concurrency, and idempotence is the
// chunk named by ChunkID.
type EnrichmentTask struct {
	ID             string
	Queue          string
	Status         TaskStatus
	Collection     string
	BaseID         string
	ChunkID        string
	Attempt        int
	MaxAttempts    int
	RunAfter       time.Time
	LeasedBy       string
	LeaseExpiresAt time.Time
	CreatedAt      time.Time
	StartedAt      time.Time
	Error          string
}

// PendingChunk identifies one chunk eligible for (re-)enrichment, returned
// by a store's PendingChunks for EnrichmentCoordinator.Enqueue to build one
// EnrichmentTask row per chunk.
type PendingChunk struct {
	BaseID  string
	ChunkID string
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
