package server

import (
	log "github.com/go-pkgz/lgr"
)

// AccessEvent is one public access to a share, file or link.
type AccessEvent struct {
	Kind    string // share, download or link
	Key     string
	IP      string
	Granted bool
}

// AccessLogger receives public access events. The default implementation just
// logs; analytics, geolocation enrichment or webhook notification attach here.
type AccessLogger interface {
	Record(e AccessEvent)
}

// LgrAccessLogger writes access events to the application log.
type LgrAccessLogger struct{}

// Record implements AccessLogger.
func (LgrAccessLogger) Record(e AccessEvent) {
	log.Printf("[INFO] access %s %s from %s, granted=%v", e.Kind, e.Key, e.IP, e.Granted)
}
