package vectorstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Document is one indexed chunk of meeting content. Category and ReceivedAt
// are carried alongside the vector so searches can filter without joining
// the relational store.
type Document struct {
	MeetingID  uuid.UUID
	ChunkIndex int
	Content    string
	Category   string
	ReceivedAt time.Time
	Vector     []float32
}

// SearchResult is a scored match from a similarity search
type SearchResult struct {
	MeetingID  uuid.UUID
	ChunkIndex int
	Content    string
	Similarity float64
}

// SearchFilter narrows a similarity search. Zero values mean no constraint;
// From and To bound the meeting's received timestamp.
type SearchFilter struct {
	Category string
	From     time.Time
	To       time.Time
}

// Store is the vector index behind semantic retrieval. Writes happen after
// the relational commit, so the index may briefly trail the database; readers
// must tolerate missing entries.
type Store interface {
	Upsert(ctx context.Context, docs []Document) error
	Search(ctx context.Context, vector []float32, topK int, filter SearchFilter) ([]SearchResult, error)
	DeleteByMeeting(ctx context.Context, meetingID uuid.UUID) error
}
