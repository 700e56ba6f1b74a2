package model

import "time"

// An Item represents one task of an owner's collection.
//
// The ID is assigned client-side at creation time and carried by the document
// path in the remote store, never as a document field. CreatedDate is set once
// and never mutated; IsDone is the only field that changes after creation.
type Item struct {
	ID          string
	Title       string
	DueDate     time.Time
	CreatedDate time.Time
	IsDone      bool
}
