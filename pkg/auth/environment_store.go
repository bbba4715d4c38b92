package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore.
const (
	EnvSessionID = "INSTAPROFILER_SESSION_ID"
	EnvCSRFToken = "INSTAPROFILER_CSRF_TOKEN"
	EnvUserAgent = "INSTAPROFILER_USER_AGENT"
	EnvUsername  = "INSTAPROFILER_USERNAME"
)

// EnvironmentStore is a read-only store over environment variables.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(*Session) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment session. It matches any username unless
// INSTAPROFILER_USERNAME names a different one.
func (e *EnvironmentStore) Retrieve(username string) (*Session, error) {
	sessionID := os.Getenv(EnvSessionID)
	csrfToken := os.Getenv(EnvCSRFToken)
	if sessionID == "" || csrfToken == "" {
		return nil, ErrCredentialsNotFound
	}

	name := os.Getenv(EnvUsername)
	switch {
	case name == "" && username == "":
		name = "default"
	case name == "":
		name = username
	case username != "" && username != name:
		return nil, ErrCredentialsNotFound
	}

	return &Session{
		Username:  name,
		SessionID: sessionID,
		CSRFToken: csrfToken,
		UserAgent: os.Getenv(EnvUserAgent),
		// Environment sessions never win over stored ones.
		LastModified: time.Time{},
	}, nil
}

// List returns the environment session when one is set
func (e *EnvironmentStore) List() ([]*Session, error) {
	session, err := e.Retrieve("")
	if err != nil {
		return nil, nil
	}
	return []*Session{session}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
