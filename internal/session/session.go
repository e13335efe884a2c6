// Package session abstracts the authentication collaborator that supplies
// the current user identity and bearer credential. Its internal mechanics
// (issuance, refresh) are outside the pipeline; the pipeline only consumes
// the snapshot returned by GetSession.
package session

import (
	"os"

	"github.com/kchalkias/go-chat-client/internal/sysutil"
)

// Session is the credential snapshot handed to the pipeline.
type Session struct {
	UserID      string
	AccessToken string
}

// Provider yields the current session, or nil when no user is signed in.
type Provider interface {
	GetSession() *Session
}

// StaticProvider returns a fixed session. Used in tests and single-user
// deployments.
type StaticProvider struct {
	Session *Session
}

// GetSession implements Provider.
func (p StaticProvider) GetSession() *Session { return p.Session }

// EnvProvider reads the session from the environment on every call, so a
// rotated token is picked up without restarting. CHAT_USER_ID and
// CHAT_ACCESS_TOKEN take precedence; USER_ID and ACCESS_TOKEN are accepted
// as generic fallbacks.
type EnvProvider struct{}

// GetSession implements Provider. It returns nil when no user id is set.
func (EnvProvider) GetSession() *Session {
	uid := sysutil.FirstNonEmpty(os.Getenv("CHAT_USER_ID"), os.Getenv("USER_ID"))
	if uid == "" {
		return nil
	}
	return &Session{
		UserID:      uid,
		AccessToken: sysutil.FirstNonEmpty(os.Getenv("CHAT_ACCESS_TOKEN"), os.Getenv("ACCESS_TOKEN")),
	}
}
