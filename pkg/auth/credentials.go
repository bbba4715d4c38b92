package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"instaprofiler/pkg/config"
	"instaprofiler/pkg/logger"
)

// Session is a logged-in Instagram web session. The scraper sends its
// cookies with every follow page and profile request.
type Session struct {
	Username     string    `json:"username"`
	SessionID    string    `json:"session_id"`
	CSRFToken    string    `json:"csrf_token"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Validate checks that the session carries both cookies.
func (s *Session) Validate() error {
	var errs []error
	if s.Username == "" {
		errs = append(errs, errors.New("username is required"))
	}
	if s.SessionID == "" {
		errs = append(errs, errors.New("session ID is required"))
	}
	if s.CSRFToken == "" {
		errs = append(errs, errors.New("CSRF token is required"))
	}
	return errors.Join(errs...)
}

// CredentialStore is the interface for storing and retrieving sessions
type CredentialStore interface {
	Store(session *Session) error
	Retrieve(username string) (*Session, error)
	List() ([]*Session, error)
	Delete(username string) error
	Exists(username string) bool
}

// Manager reads and writes sessions through an ordered list of stores. Writes
// go to the first store that accepts them; reads take the first hit.
type Manager struct {
	stores []CredentialStore
	logger logger.Logger
}

// NewManager creates a manager over the system keyring (when available), an
// encrypted file in the config directory and the environment.
func NewManager(log logger.Logger) (*Manager, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return NewManagerInDir(configDir, true, log)
}

// NewManagerInDir is NewManager with an explicit directory for the
// encrypted store. useKeyring false skips the system keyring.
func NewManagerInDir(dir string, useKeyring bool, log logger.Logger) (*Manager, error) {
	log = logger.OrNop(log)
	var stores []CredentialStore

	if useKeyring {
		keyringStore, err := NewKeyringStore()
		if err == nil {
			stores = append(stores, keyringStore)
		} else {
			log.WithError(err).Debug("system keyring unavailable, using encrypted file")
		}
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"), dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return NewManagerWithStores(log, stores...), nil
}

// NewManagerWithStores creates a manager over the given stores in order.
func NewManagerWithStores(log logger.Logger, stores ...CredentialStore) *Manager {
	return &Manager{stores: stores, logger: logger.OrNop(log)}
}

// Store saves a session using the first store that accepts it
func (m *Manager) Store(session *Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	session.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(session)
		if err == nil {
			m.logger.DebugWithFields("session stored", map[string]interface{}{
				"username": session.Username,
				"store":    fmt.Sprintf("%T", store),
			})
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the session of username from the first store that has it
func (m *Manager) Retrieve(username string) (*Session, error) {
	for _, store := range m.stores {
		if session, err := store.Retrieve(username); err == nil && session != nil {
			return session, nil
		}
	}
	return nil, fmt.Errorf("%w for user %s", ErrCredentialsNotFound, username)
}

// RetrieveDefault returns the most recently stored session.
func (m *Manager) RetrieveDefault() (*Session, error) {
	sessions, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrCredentialsNotFound
	}
	return sessions[0], nil
}

// List returns the sessions of all stores, newest first, one per username.
func (m *Manager) List() ([]*Session, error) {
	byUser := make(map[string]*Session)

	for _, store := range m.stores {
		sessions, err := store.List()
		if err != nil {
			continue
		}
		for _, s := range sessions {
			if existing, ok := byUser[s.Username]; !ok || s.LastModified.After(existing.LastModified) {
				byUser[s.Username] = s
			}
		}
	}

	result := make([]*Session, 0, len(byUser))
	for _, s := range byUser {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastModified.Equal(result[j].LastModified) {
			return result[i].LastModified.After(result[j].LastModified)
		}
		return result[i].Username < result[j].Username
	})
	return result, nil
}

// Delete removes the session of username from every store
func (m *Manager) Delete(username string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(username); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrCredentialsNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return fmt.Errorf("%w for user %s", ErrCredentialsNotFound, username)
}

// ApplySession fills the Instagram section of cfg with a stored session when
// cfg does not already carry one. An empty username picks the newest
// session.
func (m *Manager) ApplySession(cfg *config.Config, username string) error {
	if cfg.RequireSession() == nil {
		return nil
	}

	var (
		session *Session
		err     error
	)
	if username != "" {
		session, err = m.Retrieve(username)
	} else {
		session, err = m.RetrieveDefault()
	}
	if err != nil {
		return err
	}

	cfg.Instagram.SessionID = session.SessionID
	cfg.Instagram.CSRFToken = session.CSRFToken
	// The user agent the session cookie was issued to replaces the built-in
	// default, but not one the user configured.
	if session.UserAgent != "" && usesDefaultUserAgent(cfg) {
		cfg.Instagram.UserAgent = session.UserAgent
	}
	m.logger.DebugWithFields("using stored session", map[string]interface{}{"username": session.Username})
	return nil
}

func usesDefaultUserAgent(cfg *config.Config) bool {
	ua := cfg.Instagram.UserAgent
	return ua == "" || ua == config.DefaultConfig().Instagram.UserAgent
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "instaprofiler")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "instaprofiler")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "instaprofiler")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "instaprofiler")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Masked returns a copy of s safe to print.
func (s *Session) Masked() *Session {
	if s == nil {
		return nil
	}
	return &Session{
		Username:     s.Username,
		SessionID:    maskString(s.SessionID),
		CSRFToken:    maskString(s.CSRFToken),
		UserAgent:    s.UserAgent,
		LastModified: s.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
