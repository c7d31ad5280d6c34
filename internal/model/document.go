package model

// Document is a source PDF as recorded in the index ledger once all of its
// chunks have been committed.
type Document struct {
	Name       string `json:"name"`
	Pages      int    `json:"pages"`
	Chunks     int    `json:"chunks"`
	IngestedAt int64  `json:"ingested_at"`
}

// Page is the extracted text of one PDF page. Number is 1-based.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}
