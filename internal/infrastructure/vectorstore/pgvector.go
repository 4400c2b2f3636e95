package vectorstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/meetnote-labs/meetnote/errors"
)

// PgvectorStore implements Store on the pgvector extension. Rows live in
// meeting_embeddings with a unique (meeting_id, chunk_index) pair so
// re-indexing a meeting replaces its chunks in place.
type PgvectorStore struct {
	db *gorm.DB
}

// NewPgvectorStore creates a pgvector-backed store on an existing connection
func NewPgvectorStore(db *gorm.DB) *PgvectorStore {
	return &PgvectorStore{db: db}
}

// Upsert writes chunk embeddings, replacing earlier chunks at the same index
func (s *PgvectorStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, doc := range docs {
			res := tx.Exec(`
				INSERT INTO meeting_embeddings (id, meeting_id, chunk_index, content, category, received_at, embedding, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?::vector, NOW())
				ON CONFLICT (meeting_id, chunk_index)
				DO UPDATE SET content = EXCLUDED.content, category = EXCLUDED.category,
				              received_at = EXCLUDED.received_at, embedding = EXCLUDED.embedding`,
				uuid.New(), doc.MeetingID, doc.ChunkIndex, doc.Content,
				doc.Category, doc.ReceivedAt, vectorToString(doc.Vector))
			if res.Error != nil {
				return res.Error
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.ErrVectorStoreFailed("upsert", err)
	}
	return nil
}

// Search returns the topK most similar chunks matching the filter, by
// cosine distance
func (s *PgvectorStore) Search(ctx context.Context, vector []float32, topK int, filter SearchFilter) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	vec := vectorToString(vector)

	rows := []struct {
		MeetingID  uuid.UUID `gorm:"column:meeting_id"`
		ChunkIndex int       `gorm:"column:chunk_index"`
		Content    string    `gorm:"column:content"`
		Similarity float64   `gorm:"column:similarity"`
	}{}

	query := `
		SELECT meeting_id, chunk_index, content,
		       1 - (embedding <=> ?::vector) AS similarity
		FROM meeting_embeddings`
	args := []interface{}{vec}

	var conds []string
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "received_at >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		conds = append(conds, "received_at < ?")
		args = append(args, filter.To)
	}
	if len(conds) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}
	query += "\n\t\tORDER BY embedding <=> ?::vector\n\t\tLIMIT ?"
	args = append(args, vec, topK)

	err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error
	if err != nil {
		return nil, apperrors.ErrVectorStoreFailed("search", err)
	}

	results := make([]SearchResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, SearchResult{
			MeetingID:  r.MeetingID,
			ChunkIndex: r.ChunkIndex,
			Content:    r.Content,
			Similarity: r.Similarity,
		})
	}
	return results, nil
}

// DeleteByMeeting removes every chunk indexed for a meeting
func (s *PgvectorStore) DeleteByMeeting(ctx context.Context, meetingID uuid.UUID) error {
	err := s.db.WithContext(ctx).
		Exec("DELETE FROM meeting_embeddings WHERE meeting_id = ?", meetingID).Error
	if err != nil {
		return apperrors.ErrVectorStoreFailed("delete", err)
	}
	return nil
}

// vectorToString renders a vector in pgvector's literal format
func vectorToString(vector []float32) string {
	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ","))
}
