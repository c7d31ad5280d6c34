package model

type GroundingDecision struct {
	Passed   bool          `json:"passed"`
	Reason   string        `json:"reason"`
	TopScore float64       `json:"top_score"`
	Sources  []ScoredChunk `json:"-"`
}

type Citation struct {
	Document string `json:"document"`
	Page     int    `json:"page"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
}

type Answer struct {
	Text            string     `json:"answer"`
	Citations       []Citation `json:"citations"`
	OutOfContext    bool       `json:"out_of_context"`
	RetrievedChunks int        `json:"retrieved_chunks"`
}
