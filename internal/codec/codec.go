// Package codec converts between raw document field maps and typed records.
//
// Decoding is deliberately tolerant: one malformed remote document yields a
// DecodeFailure and never aborts the batch it arrived in. Encoding is total
// and excludes the id, which is carried by the document path.
package codec

import (
	"fmt"
	"math"
	"time"

	"github.com/taskmirror/taskmirror/internal/model"
	"github.com/taskmirror/taskmirror/internal/store"
)

// Field names of an item document.
const (
	FieldTitle       = "title"
	FieldDueDate     = "dueDate"
	FieldCreatedDate = "createdDate"
	FieldIsDone      = "isDone"
)

// Field names of a profile document.
const (
	FieldName   = "name"
	FieldEmail  = "email"
	FieldJoined = "joined"
)

// A DecodeFailure reports a single malformed document. It carries the
// document id and the raw field map for diagnostics.
type DecodeFailure struct {
	DocumentID string
	Fields     store.Fields
	Reason     string
}

// Error implements the error interface.
func (e *DecodeFailure) Error() string {
	return fmt.Sprintf("codec: document %s: %s", e.DocumentID, e.Reason)
}

// DecodeItem builds an Item from a raw document. Missing or type-mismatched
// required fields produce a *DecodeFailure.
func DecodeItem(documentID string, fields store.Fields) (model.Item, error) {
	fail := func(reason string) (model.Item, error) {
		return model.Item{}, &DecodeFailure{DocumentID: documentID, Fields: fields, Reason: reason}
	}

	title, ok := fields[FieldTitle].(string)
	if !ok {
		return fail("missing or mismatched field " + FieldTitle)
	}
	due, ok := numeric(fields[FieldDueDate])
	if !ok {
		return fail("missing or mismatched field " + FieldDueDate)
	}
	created, ok := numeric(fields[FieldCreatedDate])
	if !ok {
		return fail("missing or mismatched field " + FieldCreatedDate)
	}
	done, ok := fields[FieldIsDone].(bool)
	if !ok {
		return fail("missing or mismatched field " + FieldIsDone)
	}

	return model.Item{
		ID:          documentID,
		Title:       title,
		DueDate:     FromEpoch(due),
		CreatedDate: FromEpoch(created),
		IsDone:      done,
	}, nil
}

// EncodeItem renders the fields to persist for an item. The id is excluded
// since it names the document itself; everything else is included.
func EncodeItem(item model.Item) store.Fields {
	return store.Fields{
		FieldTitle:       item.Title,
		FieldDueDate:     Epoch(item.DueDate),
		FieldCreatedDate: Epoch(item.CreatedDate),
		FieldIsDone:      item.IsDone,
	}
}

// DecodeProfile builds the read-only profile projection. Unlike items, the
// decode is lenient: absent fields fall back to placeholders so a partially
// written profile document still renders.
func DecodeProfile(ownerID string, fields store.Fields) model.Profile {
	profile := model.Profile{ID: ownerID, Name: "N/A", Email: "N/A", Joined: time.Now()}

	if name, ok := fields[FieldName].(string); ok {
		profile.Name = name
	}
	if email, ok := fields[FieldEmail].(string); ok {
		profile.Email = email
	}
	if joined, ok := numeric(fields[FieldJoined]); ok {
		profile.Joined = FromEpoch(joined)
	}
	return profile
}

// EncodeProfile renders the fields to persist for an owner's profile document.
func EncodeProfile(profile model.Profile) store.Fields {
	return store.Fields{
		FieldName:   profile.Name,
		FieldEmail:  profile.Email,
		FieldJoined: Epoch(profile.Joined),
	}
}

// Epoch returns t as seconds since epoch, truncated to the millisecond so
// that the value survives a float64 round trip exactly.
func Epoch(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

// FromEpoch returns the time for the given seconds-since-epoch value.
func FromEpoch(seconds float64) time.Time {
	return time.UnixMilli(int64(math.Round(seconds * 1000)))
}

// numeric widens the numeric types a document field can arrive as. The wire
// value is a double but decoders hand over integers for whole numbers.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
