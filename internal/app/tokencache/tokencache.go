// Package tokencache keeps the CLI session on disk between runs. The token
// file is encoded and authenticated with gorilla/securecookie using a key
// file that is created on first use next to it.
package tokencache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

const (
	keyFile   = "key"
	tokenFile = "session"
	cookieKey = "inventoryhub-session"
)

// ErrNoSession is returned by Load when nothing usable is cached.
var ErrNoSession = errors.New("no cached session")

// Entry is what gets cached.
type Entry struct {
	Token   string    `json:"token"`
	UserID  string    `json:"userId"`
	Mail    string    `json:"mail"`
	Name    string    `json:"name"`
	SavedAt time.Time `json:"savedAt"`
}

// Cache is a file-backed session cache rooted at one directory.
type Cache struct {
	dir   string
	codec *securecookie.SecureCookie
	log   *zap.Logger
}

// Open returns a Cache in dir, creating the directory and the key file as
// needed.
func Open(dir string, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	hashKey, blockKey, err := loadKeys(filepath.Join(dir, keyFile))
	if err != nil {
		return nil, err
	}
	codec := securecookie.New(hashKey, blockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	// Token expiry is enforced by the server.
	codec.MaxAge(0)
	return &Cache{dir: dir, codec: codec, log: logger}, nil
}

func loadKeys(path string) (hashKey, blockKey []byte, err error) {
	b, err := os.ReadFile(path)
	if err == nil && len(b) == 64 {
		return b[:32], b[32:], nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("read cache key: %w", err)
	}
	hashKey = securecookie.GenerateRandomKey(32)
	blockKey = securecookie.GenerateRandomKey(32)
	if hashKey == nil || blockKey == nil {
		return nil, nil, errors.New("generate cache key")
	}
	if err := os.WriteFile(path, append(append([]byte{}, hashKey...), blockKey...), 0o600); err != nil {
		return nil, nil, fmt.Errorf("write cache key: %w", err)
	}
	return hashKey, blockKey, nil
}

func (c *Cache) path() string { return filepath.Join(c.dir, tokenFile) }

// Save replaces the cached session.
func (c *Cache) Save(e Entry) error {
	if e.SavedAt.IsZero() {
		e.SavedAt = time.Now().UTC()
	}
	encoded, err := c.codec.Encode(cookieKey, e)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(c.path(), []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Load returns the cached session. A missing, tampered or unreadable file
// yields ErrNoSession.
func (c *Cache) Load() (Entry, error) {
	b, err := os.ReadFile(c.path())
	if errors.Is(err, os.ErrNotExist) {
		return Entry{}, ErrNoSession
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read session: %w", err)
	}
	var e Entry
	if err := c.codec.Decode(cookieKey, string(b), &e); err != nil {
		c.log.Warn("discarding unreadable session cache", zap.Error(err))
		return Entry{}, ErrNoSession
	}
	if e.Token == "" {
		return Entry{}, ErrNoSession
	}
	return e, nil
}

// Clear removes the cached session. Clearing an empty cache is not an error.
func (c *Cache) Clear() error {
	if err := os.Remove(c.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Token returns the cached bearer token, or "" when signed out.
func (c *Cache) Token() (string, error) {
	e, err := c.Load()
	if errors.Is(err, ErrNoSession) {
		return "", nil
	}
	return e.Token, err
}
