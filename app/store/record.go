// Package store provides flat-file persistence for shares, short links and
// rate-limit records. Directories and JSON documents are the only storage
// substrate; every record is scoped to a single key (share id, code, hashed ip)
// so different keys never contend on the same file.
package store

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrSaveRejected = errors.New("can't save record")
)

// NeverExpires is the sentinel expiry timestamp (2100-01-01 UTC) used instead
// of a true infinity, keeping the persisted format numeric and comparable.
const NeverExpires int64 = 4102444800

// FileEntry describes one uploaded file inside a share.
type FileEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	Path string `json:"path"`
}

// Share is a group of uploaded files under one opaque id.
type Share struct {
	ID            string      `json:"id"`
	Created       int64       `json:"created"`
	Expires       int64       `json:"expires"`
	Files         []FileEntry `json:"files"`
	PasswordHash  string      `json:"password,omitempty"`
	TempAccessKey string      `json:"temp_access_key,omitempty"`
}

// Protected reports if the share requires a password.
func (s *Share) Protected() bool { return s.PasswordHash != "" }

// Expired reports if the share is past its expiry at the given time.
// The exact expiry instant is still valid.
func (s *Share) Expired(now time.Time) bool { return now.Unix() > s.Expires }

// Link is a short code pointing to an original URL with click accounting.
type Link struct {
	Code        string `json:"code"`
	OriginalURL string `json:"original_url"`
	Created     int64  `json:"created"`
	Expires     int64  `json:"expires"`
	Clicks      int64  `json:"clicks"`
}

// Expired reports if the link is past its expiry at the given time.
func (l *Link) Expired(now time.Time) bool { return now.Unix() > l.Expires }

// ExpiryFromSelector converts a day-count selector to an absolute unix expiry.
// Any selector < 0 means "never" and maps to the NeverExpires sentinel.
func ExpiryFromSelector(days int, now time.Time) int64 {
	if days < 0 {
		return NeverExpires
	}
	return now.Add(time.Duration(days) * 24 * time.Hour).Unix()
}
