package types

import (
	"time"
)

// Page is one page of extracted document text. Index is zero-based.
type Page struct {
	Index int
	Text  string
}

// Number returns the 1-based page number shown to users.
func (p Page) Number() int {
	return p.Index + 1
}

// Metadata keys set on every ingested chunk.
const (
	MetaPage   = "page"
	MetaSource = "source"
	MetaChunk  = "chunk"
)

// ChunkRecord is a unit of retrieval: a bounded slice of page text and its embedding.
type ChunkRecord struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Vector   []float32      `json:"vector"`
}

type SearchResult struct {
	Record ChunkRecord
	Score  float64
}

type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role" validate:"required,oneof=user ai"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a persisted chat. Messages are append-only and kept in chronological order.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Timestamp    time.Time `json:"timestamp"`
	MessageCount int       `json:"messageCount"`
}

// HistoryTurn is a prior exchange sent along with a question.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IngestReport describes a successfully ingested document.
type IngestReport struct {
	Filename  string        `json:"filename"`
	Pages     int           `json:"pages"`
	Chunks    int           `json:"chunks"`
	Dimension int           `json:"dimension"`
	Took      time.Duration `json:"took"`
}
