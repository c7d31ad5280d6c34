package model

type Chunk struct {
	ID        string    `json:"id"`
	Document  string    `json:"document"`
	Page      int       `json:"page"`
	Seq       int       `json:"seq"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	// SourceRef is the object store name of the document, never a URL.
	SourceRef string `json:"source_ref"`
}

type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult holds the index ranking as returned, best first.
type RetrievalResult struct {
	Query  string        `json:"query"`
	Chunks []ScoredChunk `json:"chunks"`
}

func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Chunks) == 0
}

// TopScore returns the score at rank 1, or 0 for an empty result.
func (r *RetrievalResult) TopScore() float64 {
	if r.Empty() {
		return 0
	}
	return r.Chunks[0].Score
}
