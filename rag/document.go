package rag

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DocType is the source format of an ingested document.
type DocType string

const (
	DocTypeHTML DocType = "html"
	DocTypePDF  DocType = "pdf"
)

// ParseDocType accepts "html" or "pdf" in any case. Empty input is valid and
// means "any".
func ParseDocType(s string) (DocType, error) {
	switch DocType(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case DocTypeHTML:
		return DocTypeHTML, nil
	case DocTypePDF:
		return DocTypePDF, nil
	}
	return "", fmt.Errorf("unknown document type %q", s)
}

// SourceDocument is an ingested source file.
type SourceDocument struct {
	DocID         string // POSIX path relative to the corpus root
	University    string
	Type          DocType
	URL           *string // best-effort canonical URL
	Content       string
	Pages         []string // PDF page texts
	ParentPointID string
	Filepath      string
}

// Chunk is a window carved from a SourceDocument.
type Chunk struct {
	PointID       string
	ParentPointID string
	ChunkID       int
	Content       string
	StartPage     *int
	EndPage       *int
}

// Payload is the metadata stored with every point. Parent and chunk points
// share one collection; chunks carry ChunkID.
type Payload struct {
	Filepath      string   `json:"filepath"`
	DocID         string   `json:"doc_id"`
	University    string   `json:"university"`
	Type          DocType  `json:"type"`
	URL           *string  `json:"url,omitempty"`
	Content       string   `json:"content"`
	PointID       string   `json:"point_id"`
	ParentPointID string   `json:"parent_point_id"`
	ChunkID       *int     `json:"chunk_id,omitempty"`
	StartPage     *int     `json:"start_page,omitempty"`
	EndPage       *int     `json:"end_page,omitempty"`
	Pages         []string `json:"pages,omitempty"` // PDF parents only
}

// IsChunk reports whether the payload belongs to a chunk point.
func (p Payload) IsChunk() bool { return p.ChunkID != nil }

// Point is a vector with its payload, keyed by ID.
type Point struct {
	ID      string    `json:"id"`
	Vector  []float64 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	Point
	Score float64 `json:"score"`
}

var pointNamespace = uuid.MustParse("3f1c6a52-9d0e-4b57-8a41-6a2f0c5d7e19")

// ParentPointID derives the stable point id of a document.
func ParentPointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

// ChunkPointID derives the stable point id of a document's n-th chunk.
func ChunkPointID(docID string, n int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s#%d", docID, n))).String()
}

// NewSourceDocument fills in the parent point id.
func NewSourceDocument(docID, university string, typ DocType, content string) SourceDocument {
	return SourceDocument{
		DocID:         docID,
		University:    university,
		Type:          typ,
		Content:       content,
		ParentPointID: ParentPointID(docID),
	}
}

// ParentPayload builds the payload of the document point.
func (d SourceDocument) ParentPayload() Payload {
	return Payload{
		Filepath:      d.Filepath,
		DocID:         d.DocID,
		University:    d.University,
		Type:          d.Type,
		URL:           d.URL,
		Content:       d.Content,
		PointID:       d.ParentPointID,
		ParentPointID: d.ParentPointID,
		Pages:         d.Pages,
	}
}

// Chunks converts chunker output into chunks of d.
func (d SourceDocument) Chunks(tcs []TextChunk) []Chunk {
	out := make([]Chunk, len(tcs))
	for i, tc := range tcs {
		out[i] = Chunk{
			PointID:       ChunkPointID(d.DocID, tc.ChunkID),
			ParentPointID: d.ParentPointID,
			ChunkID:       tc.ChunkID,
			Content:       tc.Content,
			StartPage:     tc.StartPage,
			EndPage:       tc.EndPage,
		}
	}
	return out
}

// ChunkPayload builds the payload of a chunk point of d.
func (d SourceDocument) ChunkPayload(c Chunk) Payload {
	id := c.ChunkID
	return Payload{
		Filepath:      d.Filepath,
		DocID:         d.DocID,
		University:    d.University,
		Type:          d.Type,
		URL:           d.URL,
		Content:       c.Content,
		PointID:       c.PointID,
		ParentPointID: d.ParentPointID,
		ChunkID:       &id,
		StartPage:     c.StartPage,
		EndPage:       c.EndPage,
	}
}
