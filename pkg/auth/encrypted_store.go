package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// EnvPassphrase overrides the generated encryption passphrase.
const EnvPassphrase = "INSTAPROFILER_PASSPHRASE"

const (
	sessionFileVersion = 2
	passphraseFile     = ".passphrase"

	saltSize   = 32
	keySize    = 32
	iterations = 100000
)

// sessionFile is the on-disk form of an EncryptedFileStore. Sealed holds the
// AES-GCM nonce followed by the ciphertext of the JSON encoded session set.
type sessionFile struct {
	Version  int       `json:"version"`
	Salt     []byte    `json:"salt"`
	Sealed   []byte    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// sessionSet maps usernames onto their sessions.
type sessionSet map[string]Session

// EncryptedFileStore keeps every session in one encrypted file. The key is
// derived with PBKDF2 from INSTAPROFILER_PASSPHRASE, or from a random
// passphrase generated on first use and kept next to the file.
type EncryptedFileStore struct {
	path       string
	passphrase []byte

	mu sync.RWMutex
}

// NewEncryptedFileStore opens the store at path. passphraseDir holds the
// generated passphrase when the environment does not supply one.
func NewEncryptedFileStore(path, passphraseDir string) (*EncryptedFileStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create session directory: %w", err)
		}
	}

	passphrase, err := loadPassphrase(passphraseDir)
	if err != nil {
		return nil, fmt.Errorf("session passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

func (e *EncryptedFileStore) Store(session *Session) error {
	if session == nil || session.Username == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(set sessionSet) error {
		set[session.Username] = *session
		return nil
	})
}

func (e *EncryptedFileStore) Retrieve(username string) (*Session, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	set, _, err := e.read()
	if err != nil {
		return nil, err
	}
	session, ok := set[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &session, nil
}

// List returns the stored sessions ordered by username.
func (e *EncryptedFileStore) List() ([]*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	set, _, err := e.read()
	if err != nil {
		return nil, err
	}

	sessions := make([]*Session, 0, len(set))
	for _, s := range set {
		s := s
		sessions = append(sessions, &s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Username < sessions[j].Username })
	return sessions, nil
}

// Delete removes username. The file goes away with its last session.
func (e *EncryptedFileStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(set sessionSet) error {
		if _, ok := set[username]; !ok {
			return ErrCredentialsNotFound
		}
		delete(set, username)
		return nil
	})
}

func (e *EncryptedFileStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}

// update applies fn to the current set under the write lock and persists
// the result. fn returning an error leaves the file untouched.
func (e *EncryptedFileStore) update(fn func(sessionSet) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	set, salt, err := e.read()
	if err != nil {
		return err
	}
	if err := fn(set); err != nil {
		return err
	}
	if len(set) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}
	return e.write(set, salt)
}

// read decrypts the session file and returns its salt. A missing file is
// an empty set with no salt.
func (e *EncryptedFileStore) read() (sessionSet, []byte, error) {
	raw, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return sessionSet{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read session file: %w", err)
	}

	var f sessionFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, nil, fmt.Errorf("parse session file: %w", err)
	}
	plain, err := openSealed(deriveKey(e.passphrase, f.Salt), f.Sealed)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypt session file: %w", err)
	}

	set := sessionSet{}
	if err := json.Unmarshal(plain, &set); err != nil {
		return nil, nil, fmt.Errorf("decode sessions: %w", err)
	}
	return set, f.Salt, nil
}

// write seals set and replaces the file atomically. The salt of an existing
// file is kept; a new file gets a fresh one.
func (e *EncryptedFileStore) write(set sessionSet, salt []byte) error {
	if len(salt) == 0 {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	sealed, err := seal(deriveKey(e.passphrase, salt), plain)
	if err != nil {
		return fmt.Errorf("encrypt sessions: %w", err)
	}

	out, err := json.MarshalIndent(sessionFile{
		Version:  sessionFileVersion,
		Salt:     salt,
		Sealed:   sealed,
		Modified: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return os.Rename(tmp, e.path)
}

// loadPassphrase prefers the environment, then the passphrase file in dir,
// and otherwise creates that file with 32 random bytes.
func loadPassphrase(dir string) ([]byte, error) {
	if p := os.Getenv(EnvPassphrase); p != "" {
		return []byte(p), nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, passphraseFile)
	if p, err := os.ReadFile(path); err == nil && len(p) > 0 {
		return p, nil
	}

	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, fmt.Errorf("generate passphrase: %w", err)
	}
	p := []byte(base64.RawURLEncoding.EncodeToString(buf))
	if err := os.WriteFile(path, p, 0600); err != nil {
		return nil, fmt.Errorf("save passphrase: %w", err)
	}
	return p, nil
}

func deriveKey(passphrase, salt []byte) []byte {
	return pbkdf2.Key(passphrase, salt, iterations, keySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func seal(key, plain []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func openSealed(key, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	n := gcm.NonceSize()
	if len(sealed) < n {
		return nil, errors.New("sealed data too short")
	}
	return gcm.Open(nil, sealed[:n], sealed[n:], nil)
}
