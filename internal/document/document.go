// Package document defines the shared document model.
//
// A document is one row of the content table the retrieval pipeline draws
// from. The table is owned by an external managed database; this package only
// describes its shape. Both storage backends (the Supabase PostgREST client
// and the direct-Postgres store) produce this type.
package document

import "time"

// Document is a single row of the documents table.
type Document struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Validation limits for document writes.
// Content is the retrieval payload and may be long; titles are display-only.
const (
	MaxTitleLength   = 200
	MaxContentLength = 100_000
)
