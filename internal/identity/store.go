package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"a2a/internal/fileutil"
)

const recordExt = ".json"

// record is the on-disk form of an Identity.
type record struct {
	Name      string `json:"name"`
	SecretKey string `json:"secret_key"`
	Created   int64  `json:"created"`
}

// Store reads and writes identity records in one directory.
type Store struct {
	dir     string
	now     func() time.Time
	entropy io.Reader
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used for creation timestamps and
// generated names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEntropy overrides the randomness used for new keys.
func WithEntropy(r io.Reader) Option {
	return func(s *Store) {
		if r != nil {
			s.entropy = r
		}
	}
}

// NewStore returns a store rooted at dir. The directory is created on first
// write.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, now: time.Now, entropy: rand.Reader}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the directory holding the records.
func (s *Store) Dir() string { return s.dir }

// LoadOrCreate returns the identity called name, creating and persisting a
// fresh keypair when none exists. An empty name is replaced by a generated
// adjective-animal name.
func (s *Store) LoadOrCreate(name string) (Identity, error) {
	if strings.TrimSpace(name) == "" {
		name = GenerateName(s.now())
	}
	name, err := NormalizeName(name)
	if err != nil {
		return Identity{}, err
	}

	id, err := s.Load(name)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return id, err
	}

	created, err := s.create(name)
	if errors.Is(err, fs.ErrExist) {
		// Another process created it between Load and create.
		return s.Load(name)
	}
	return created, err
}

// Load returns the identity called name without creating it.
func (s *Store) Load(name string) (Identity, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return Identity{}, err
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Identity{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Identity{}, fmt.Errorf("%w: read %s: %v", ErrPersistence, name, err)
	}
	id, err := decodeRecord(data)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: decode %s: %v", ErrPersistence, name, err)
	}
	return id, nil
}

// List returns every readable identity sorted by name. Unreadable or corrupt
// records are skipped; a missing directory yields an empty list.
func (s *Store) List() ([]Identity, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list %s: %v", ErrPersistence, s.dir, err)
	}
	ids := make([]Identity, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != recordExt {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		id, err := decodeRecord(data)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Name < ids[j].Name })
	return ids, nil
}

func (s *Store) create(name string) (Identity, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(s.entropy, seed); err != nil {
		return Identity{}, fmt.Errorf("%w: generate key: %v", ErrPersistence, err)
	}
	id := Identity{
		Name:      name,
		Key:       ed25519.NewKeyFromSeed(seed),
		CreatedAt: s.now().Truncate(time.Second),
	}
	data, err := json.MarshalIndent(record{
		Name:      id.Name,
		SecretKey: base64.StdEncoding.EncodeToString(seed),
		Created:   id.CreatedAt.Unix(),
	}, "", "  ")
	if err != nil {
		return Identity{}, fmt.Errorf("%w: encode %s: %v", ErrPersistence, name, err)
	}
	if err := fileutil.WriteFileExclusive(s.path(name), data, 0o600); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Identity{}, err
		}
		return Identity{}, fmt.Errorf("%w: write %s: %v", ErrPersistence, name, err)
	}
	return id, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+recordExt)
}

func decodeRecord(data []byte) (Identity, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Identity{}, err
	}
	if strings.TrimSpace(rec.Name) == "" {
		return Identity{}, errors.New("missing name")
	}
	seed, err := base64.StdEncoding.DecodeString(rec.SecretKey)
	if err != nil {
		return Identity{}, fmt.Errorf("secret_key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return Identity{}, fmt.Errorf("secret_key: want %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return Identity{
		Name:      rec.Name,
		Key:       ed25519.NewKeyFromSeed(seed),
		CreatedAt: time.Unix(rec.Created, 0),
	}, nil
}
