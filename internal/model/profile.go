package model

import "time"

// A Profile is the read-only projection of an owner's account document.
// It is fetched once per session activation and never kept live-synchronized.
type Profile struct {
	ID     string
	Name   string
	Email  string
	Joined time.Time
}
