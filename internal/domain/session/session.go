// Package session holds per-(user, view) incremental search state.
package session

import (
	"fmt"
	"strings"
)

// ValidateUser checks a client-supplied user id. Sessions are keyed
// "<user>|<view>", so '|' is reserved as the separator.
func ValidateUser(user string) error {
	if user == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.ContainsRune(user, '|') {
		return fmt.Errorf("user id %q must not contain '|'", user)
	}
	return nil
}

// Session is the state machine record for one list view's search: the
// ephemeral index handle, the fingerprint of the criteria last applied to
// it, and the set of rows already transmitted to the client.
//
// A Session is owned by exactly one logical client view; the caller is
// responsible for serializing requests per view. It is loaded at request
// start and saved at request end rather than living on any handler.
type Session struct {
	user        string
	view        string
	indexHandle string
	fingerprint uint64
	transmitted map[string]int64
	active      bool
}

// New creates an idle session for a (user, view) pair.
func New(user, view string) *Session {
	return &Session{
		user:        user,
		view:        view,
		transmitted: make(map[string]int64),
	}
}

// Reconstruct rebuilds a session from persisted state.
func Reconstruct(
	user, view, indexHandle string, fingerprint uint64,
	transmitted map[string]int64, active bool,
) *Session {
	if transmitted == nil {
		transmitted = make(map[string]int64)
	}
	return &Session{
		user:        user,
		view:        view,
		indexHandle: indexHandle,
		fingerprint: fingerprint,
		transmitted: transmitted,
		active:      active,
	}
}

// User returns the owning user id.
func (s *Session) User() string { return s.user }

// View returns the owning view id.
func (s *Session) View() string { return s.view }

// IndexHandle returns the ephemeral index handle ("" before the first search).
func (s *Session) IndexHandle() string { return s.indexHandle }

// SetIndexHandle records a newly created index handle.
func (s *Session) SetIndexHandle(h string) { s.indexHandle = h }

// Fingerprint returns the last-applied criteria fingerprint (0 when unset).
func (s *Session) Fingerprint() uint64 { return s.fingerprint }

// SetFingerprint records the criteria fingerprint applied to the index.
func (s *Session) SetFingerprint(fp uint64) { s.fingerprint = fp }

// Active reports whether a search is in progress.
func (s *Session) Active() bool { return s.active }

// Activate marks the session as searching.
func (s *Session) Activate() { s.active = true }

// Transmitted returns the transmitted set: item id to last-sent stamp.
// The map is owned by the session; callers must not retain it.
func (s *Session) Transmitted() map[string]int64 { return s.transmitted }

// SetTransmitted replaces the transmitted set.
func (s *Session) SetTransmitted(m map[string]int64) {
	if m == nil {
		m = make(map[string]int64)
	}
	s.transmitted = m
}

// ResetTransmitted clears the transmitted set. A fresh search always starts
// a new transmitted set, even when the index and fingerprint are reused.
func (s *Session) ResetTransmitted() {
	s.transmitted = make(map[string]int64)
}

// Clear tears the session back to idle: handle, fingerprint, and
// transmitted set are all dropped.
func (s *Session) Clear() {
	s.indexHandle = ""
	s.fingerprint = 0
	s.transmitted = make(map[string]int64)
	s.active = false
}
