// Package credentials provides secure session storage for the nenavi CLI.
// The backend authenticates with an HTTP-only session cookie; this package
// persists that cookie in ~/.nenavi/session.yaml with the cookie value
// encrypted at rest.
//
// Encryption Key Storage:
// The encryption key is stored securely using the system keyring:
// - macOS: Keychain
// - Windows: Credential Manager
// - Linux: Secret Service (libsecret)
//
// For CI/testing environments, set NENAVI_ENCRYPTION_KEY to a 64-character
// hex string (32 bytes).
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Session storage constants.
const (
	DefaultSessionDir  = ".nenavi"
	DefaultSessionFile = "session.yaml"
)

// Common errors.
var (
	// ErrNoSession is returned when no session is stored.
	ErrNoSession = errors.New("no session stored")
	// ErrExpiredSession is returned when the stored session cookie has expired.
	ErrExpiredSession = errors.New("stored session has expired")
	// ErrEncryptionFailed is returned when encryption/decryption fails.
	ErrEncryptionFailed = errors.New("encryption failed")
)

// SessionCookie is a persisted form of the backend's auth cookie.
type SessionCookie struct {
	// Name is the cookie name set by the backend on login.
	Name string `yaml:"name"`
	// Value is the cookie value (encrypted at rest).
	Value string `yaml:"value"`
	// Path is the cookie path scope.
	Path string `yaml:"path,omitempty"`
	// Expires is the cookie expiration time, zero for session cookies.
	Expires time.Time `yaml:"expires,omitempty"`
}

// Session holds the stored authentication session.
type Session struct {
	// ServerURL is the server this session belongs to.
	ServerURL string `yaml:"server_url"`
	// Email is the account the session was established for.
	Email string `yaml:"email,omitempty"`
	// Cookies are the cookies the backend set at login.
	Cookies []SessionCookie `yaml:"cookies"`
	// LastUpdated is when the session was last saved.
	LastUpdated time.Time `yaml:"last_updated"`
}

// HTTPCookies converts the stored cookies into http.Cookie values
// suitable for seeding a cookie jar.
func (s *Session) HTTPCookies() []*http.Cookie {
	cookies := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		cookies = append(cookies, &http.Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Path:    c.Path,
			Expires: c.Expires,
		})
	}
	return cookies
}

// Expired reports whether every stored cookie has an expiry in the past.
// Cookies without an expiry never count as expired.
func (s *Session) Expired() bool {
	if len(s.Cookies) == 0 {
		return false
	}
	now := time.Now()
	for _, c := range s.Cookies {
		if c.Expires.IsZero() || c.Expires.After(now) {
			return false
		}
	}
	return true
}

// Store manages session storage operations.
type Store struct {
	// sessionDir is the directory containing the session file.
	sessionDir string
	// encryptionKey is the key used for encrypting/decrypting cookie values.
	encryptionKey []byte
	// keyProvider is the source of the encryption key.
	keyProvider KeyProvider
}

// NewStore creates a new session store with default settings.
// It uses the system keyring (macOS Keychain, Windows Credential Manager,
// or Linux Secret Service) to store the encryption key securely.
func NewStore() (*Store, error) {
	dir, err := SessionDir()
	if err != nil {
		return nil, fmt.Errorf("getting session directory: %w", err)
	}

	keyProvider, err := GetDefaultKeyProvider()
	if err != nil {
		return nil, fmt.Errorf("initializing key provider: %w", err)
	}

	key, err := keyProvider.GetKey()
	if err != nil {
		return nil, fmt.Errorf("getting encryption key: %w", err)
	}

	return &Store{
		sessionDir:    dir,
		encryptionKey: key,
		keyProvider:   keyProvider,
	}, nil
}

// NewStoreWithKeyProvider creates a new session store with a custom key provider.
// This is primarily used for testing.
func NewStoreWithKeyProvider(keyProvider KeyProvider) (*Store, error) {
	dir, err := SessionDir()
	if err != nil {
		return nil, fmt.Errorf("getting session directory: %w", err)
	}

	key, err := keyProvider.GetKey()
	if err != nil {
		return nil, fmt.Errorf("getting encryption key: %w", err)
	}

	return &Store{
		sessionDir:    dir,
		encryptionKey: key,
		keyProvider:   keyProvider,
	}, nil
}

// SessionDir returns the session directory path.
// Uses $NENAVI_CONFIG_DIR if set, otherwise ~/.nenavi
func SessionDir() (string, error) {
	if dir := os.Getenv("NENAVI_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultSessionDir), nil
}

// SessionPath returns the full path to the session file.
func SessionPath() (string, error) {
	dir, err := SessionDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultSessionFile), nil
}

// Save stores the session to the session file.
func (s *Store) Save(sess *Session) error {
	if err := s.ensureDir(); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	// Encrypt cookie values before writing
	storage := *sess
	storage.LastUpdated = time.Now()
	storage.Cookies = make([]SessionCookie, len(sess.Cookies))
	copy(storage.Cookies, sess.Cookies)

	for i := range storage.Cookies {
		if storage.Cookies[i].Value == "" {
			continue
		}
		encrypted, err := s.encrypt(storage.Cookies[i].Value)
		if err != nil {
			return fmt.Errorf("encrypting cookie %q: %w", storage.Cookies[i].Name, err)
		}
		storage.Cookies[i].Value = encrypted
	}

	data, err := yaml.Marshal(&storage)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	// Write with restrictive permissions
	sessPath := filepath.Join(s.sessionDir, DefaultSessionFile)
	if err := os.WriteFile(sessPath, data, 0600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}

	return nil
}

// Load reads the session from the session file.
func (s *Store) Load() (*Session, error) {
	sessPath := filepath.Join(s.sessionDir, DefaultSessionFile)

	data, err := os.ReadFile(sessPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parsing session: %w", err)
	}

	for i := range sess.Cookies {
		if sess.Cookies[i].Value == "" {
			continue
		}
		decrypted, err := s.decrypt(sess.Cookies[i].Value)
		if err != nil {
			return nil, fmt.Errorf("decrypting cookie %q: %w", sess.Cookies[i].Name, err)
		}
		sess.Cookies[i].Value = decrypted
	}

	return &sess, nil
}

// LoadActive loads the session and rejects it if every cookie has expired.
func (s *Store) LoadActive() (*Session, error) {
	sess, err := s.Load()
	if err != nil {
		return nil, err
	}
	if sess.Expired() {
		return nil, ErrExpiredSession
	}
	return sess, nil
}

// Delete removes the stored session.
func (s *Store) Delete() error {
	sessPath := filepath.Join(s.sessionDir, DefaultSessionFile)

	if err := os.Remove(sessPath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted
		}
		return fmt.Errorf("removing session file: %w", err)
	}

	return nil
}

// Exists checks if a session file exists.
func (s *Store) Exists() bool {
	sessPath := filepath.Join(s.sessionDir, DefaultSessionFile)
	_, err := os.Stat(sessPath)
	return err == nil
}

// ensureDir creates the session directory if it doesn't exist.
func (s *Store) ensureDir() error {
	return os.MkdirAll(s.sessionDir, 0700)
}

// encrypt encrypts a string using AES-GCM.
func (s *Store) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("%w: creating cipher: %v", ErrEncryptionFailed, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: creating GCM: %v", ErrEncryptionFailed, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: generating nonce: %v", ErrEncryptionFailed, err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts an AES-GCM encrypted string.
func (s *Store) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decoding base64: %v", ErrEncryptionFailed, err)
	}

	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("%w: creating cipher: %v", ErrEncryptionFailed, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: creating GCM: %v", ErrEncryptionFailed, err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrEncryptionFailed)
	}

	nonce, ciphertextBytes := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", fmt.Errorf("%w: decryption failed: %v", ErrEncryptionFailed, err)
	}

	return string(plaintext), nil
}

// MaskCookieValue returns a masked version of a cookie value for display.
func MaskCookieValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// FormatExpiry formats a cookie expiry time for display.
func FormatExpiry(expiresAt time.Time) string {
	if expiresAt.IsZero() {
		return "session"
	}

	remaining := time.Until(expiresAt)
	if remaining < 0 {
		return "expired"
	}

	if remaining < time.Hour {
		return fmt.Sprintf("%d minutes", int(remaining.Minutes()))
	}
	if remaining < 24*time.Hour {
		return fmt.Sprintf("%d hours", int(remaining.Hours()))
	}
	return fmt.Sprintf("%d days", int(remaining.Hours()/24))
}
