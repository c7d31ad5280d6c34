package model

type IngestFailure struct {
	Document string `json:"document"`
	Reason   string `json:"reason"`
}

type IngestSummary struct {
	DocumentsProcessed int             `json:"documents_processed"`
	ChunksIndexed      int             `json:"chunks_indexed"`
	Skipped            int             `json:"skipped"`
	Failures           []IngestFailure `json:"failures"`
}
