// Package session holds the ephemeral per-chat conversation state in Redis.
package session

import (
	"imshaby_bot/internal/domain"
)

// AuthState tracks where the start scene's verification flow currently is.
type AuthState string

const (
	// AuthStateNone means no verification is in progress.
	AuthStateNone AuthState = ""
	// AuthStateWaitingForEmail means the scene is waiting for the user to type an email.
	AuthStateWaitingForEmail AuthState = "waiting_for_email"
	// AuthStateWaitingForCode means the scene is waiting for the emailed code to be typed back.
	AuthStateWaitingForCode AuthState = "waiting_for_code"
)

// Session is the transient state for one chat+user pair. It lives in Redis for
// the configured TTL and is owned exclusively by its chat.
type Session struct {
	Scene           string          `json:"scene,omitempty"`
	AuthState       AuthState       `json:"auth_state,omitempty"`
	PendingEmail    string          `json:"pending_email,omitempty"`
	User            *domain.User    `json:"user,omitempty"`
	Parish          *domain.Parish  `json:"parish,omitempty"`
	Parishes        []domain.Parish `json:"parishes,omitempty"`
	CleanUpMessages []int           `json:"clean_up_messages,omitempty"`
	Language        string          `json:"language,omitempty"`
}

// AwaitEmail moves the verification flow into the waiting-for-email state.
// Any previously pending email is discarded: pending email is only meaningful
// while a submitted address is being verified.
func (s *Session) AwaitEmail() {
	s.AuthState = AuthStateWaitingForEmail
	s.PendingEmail = ""
}

// AwaitCode records the submitted address and moves into the waiting-for-code
// state. The pending email is kept so the later code exchange knows which
// address it verifies.
func (s *Session) AwaitCode(email string) {
	s.AuthState = AuthStateWaitingForCode
	s.PendingEmail = email
}

// ClearAuth resets the verification flow. Both fields change together so the
// pending email can never outlive the auth state that justifies it.
func (s *Session) ClearAuth() {
	s.AuthState = AuthStateNone
	s.PendingEmail = ""
}

// RememberEmail stashes a submitted address while the verification flow is
// underway, so recovery actions can report which address failed. Outside an
// active flow the address is dropped; pending email never outlives the auth
// state.
func (s *Session) RememberEmail(email string) {
	if s.AuthInProgress() {
		s.PendingEmail = email
	}
}

// AuthInProgress reports whether a verification flow is underway.
func (s *Session) AuthInProgress() bool {
	return s.AuthState == AuthStateWaitingForEmail || s.AuthState == AuthStateWaitingForCode
}

// PushCleanup remembers a message id to delete on the next scene transition.
func (s *Session) PushCleanup(messageID int) {
	s.CleanUpMessages = append(s.CleanUpMessages, messageID)
}

// DrainCleanup returns the recorded message ids and clears the list.
func (s *Session) DrainCleanup() []int {
	ids := s.CleanUpMessages
	s.CleanUpMessages = nil
	return ids
}

// SetParishes caches the user's parishes for the scene's lifetime.
func (s *Session) SetParishes(parishes []domain.Parish) {
	s.Parishes = parishes
}

// SelectParish caches the chosen parish, or clears it when id is unknown.
func (s *Session) SelectParish(id string) *domain.Parish {
	for i := range s.Parishes {
		if s.Parishes[i].ID == id {
			s.Parish = &s.Parishes[i]
			return s.Parish
		}
	}
	s.Parish = nil
	return nil
}

// ClearSceneState drops the scene-local caches on scene exit, keeping the
// user, language, and auth flow intact.
func (s *Session) ClearSceneState() {
	s.Parish = nil
	s.Parishes = nil
}
