package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and single-node setups
// without Postgres.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]Document),
	}
}

func docKey(meetingID uuid.UUID, chunkIndex int) string {
	return fmt.Sprintf("%s/%d", meetingID, chunkIndex)
}

// Upsert stores the documents, replacing chunks at the same index
func (s *MemoryStore) Upsert(ctx context.Context, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		s.docs[docKey(doc.MeetingID, doc.ChunkIndex)] = doc
	}
	return nil
}

// Search ranks stored documents matching the filter by cosine similarity
func (s *MemoryStore) Search(ctx context.Context, vector []float32, topK int, filter SearchFilter) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]SearchResult, 0, len(s.docs))
	for _, doc := range s.docs {
		if !matchesFilter(doc, filter) {
			continue
		}
		results = append(results, SearchResult{
			MeetingID:  doc.MeetingID,
			ChunkIndex: doc.ChunkIndex,
			Content:    doc.Content,
			Similarity: cosineSimilarity(vector, doc.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func matchesFilter(doc Document, filter SearchFilter) bool {
	if filter.Category != "" && doc.Category != filter.Category {
		return false
	}
	if !filter.From.IsZero() && doc.ReceivedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !doc.ReceivedAt.Before(filter.To) {
		return false
	}
	return true
}

// DeleteByMeeting removes every chunk stored for a meeting
func (s *MemoryStore) DeleteByMeeting(ctx context.Context, meetingID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, doc := range s.docs {
		if doc.MeetingID == meetingID {
			delete(s.docs, key)
		}
	}
	return nil
}

// Len reports how many chunks are stored
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
