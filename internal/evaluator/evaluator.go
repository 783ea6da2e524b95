// Package evaluator abstracts the external service that judges a document
// against a guideline. Calls are slow (minutes) and unreliable; callers own
// retries and timeouts via context.
package evaluator

import "context"

// DocumentRef identifies a document previously uploaded to the evaluation
// backend. Refs are job-scoped: uploaded once before dispatch and deleted
// once after the last guideline finishes.
type DocumentRef struct {
	ID   string // backend-side identifier
	Name string // original file name, for logs
}

// Evaluator is the evaluation backend.
type Evaluator interface {
	// UploadDocument stages a local file with the backend and returns its ref.
	UploadDocument(ctx context.Context, path string) (DocumentRef, error)
	// DeleteDocument removes an uploaded document from the backend.
	DeleteDocument(ctx context.Context, ref DocumentRef) error
	// Evaluate runs one guideline prompt against the uploaded documents and
	// returns the raw response text. Parsing is the caller's concern.
	Evaluate(ctx context.Context, refs []DocumentRef, prompt string) (string, error)
}
