// Package credstore stores Bigeye API keys encrypted at rest.
//
// Credentials live under a single directory (by default ~/.bigeye-mcp): an
// age identity in key.txt and the encrypted credential file credentials.age.
// Both are written with owner-only permissions.
package credstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"filippo.io/age"
)

const (
	keyFileName  = "key.txt"
	credFileName = "credentials.age"
)

// Store is an encrypted credential store keyed by instance URL and workspace
// ID.
type Store struct {
	dir       string
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

type storedCredential struct {
	APIKey  string `json:"api_key"`
	SavedAt string `json:"saved_at"`
}

// credentials maps instance URL → workspace ID (as a string) → credential.
type credentials map[string]map[string]storedCredential

// Open opens the credential store in the default location, creating the
// directory and encryption key on first use.
func Open() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	return OpenAt(filepath.Join(home, ".bigeye-mcp"))
}

// OpenAt opens the credential store in the given directory.
func OpenAt(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating credential directory: %w", err)
	}

	identity, err := loadOrCreateIdentity(filepath.Join(dir, keyFileName))
	if err != nil {
		return nil, err
	}

	return &Store{
		dir:       dir,
		identity:  identity,
		recipient: identity.Recipient(),
	}, nil
}

func loadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		identity, parseErr := age.ParseX25519Identity(string(bytes.TrimSpace(data)))
		if parseErr != nil {
			return nil, fmt.Errorf("parsing encryption key: %w", parseErr)
		}
		return identity, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading encryption key: %w", err)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating encryption key: %w", err)
	}
	if err := os.WriteFile(path, []byte(identity.String()+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("writing encryption key: %w", err)
	}
	return identity, nil
}

// Save stores an API key for an instance and workspace, replacing any
// existing entry.
func (s *Store) Save(instance string, workspaceID int64, apiKey string) error {
	creds, err := s.load()
	if err != nil {
		// Unreadable or corrupt credential files start fresh rather than
		// blocking new saves.
		creds = credentials{}
	}

	byWorkspace, ok := creds[instance]
	if !ok {
		byWorkspace = map[string]storedCredential{}
		creds[instance] = byWorkspace
	}
	byWorkspace[workspaceKey(workspaceID)] = storedCredential{
		APIKey:  apiKey,
		SavedAt: time.Now().Format(time.RFC3339),
	}

	return s.write(creds)
}

// Get retrieves the API key for an instance and workspace. The boolean is
// false when no credential is stored.
func (s *Store) Get(instance string, workspaceID int64) (string, bool) {
	creds, err := s.load()
	if err != nil {
		return "", false
	}
	cred, ok := creds[instance][workspaceKey(workspaceID)]
	if !ok {
		return "", false
	}
	return cred.APIKey, true
}

// List returns the workspace IDs with saved credentials, per instance.
func (s *Store) List() map[string][]int64 {
	result := map[string][]int64{}
	creds, err := s.load()
	if err != nil {
		return result
	}
	for instance, byWorkspace := range creds {
		for key := range byWorkspace {
			id, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				continue
			}
			result[instance] = append(result[instance], id)
		}
	}
	return result
}

// Delete removes stored credentials. An empty instance deletes everything; a
// zero workspace ID deletes all workspaces of the instance.
func (s *Store) Delete(instance string, workspaceID int64) error {
	credPath := filepath.Join(s.dir, credFileName)

	if instance == "" {
		err := os.Remove(credPath)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	creds, err := s.load()
	if err != nil {
		return nil
	}

	byWorkspace, ok := creds[instance]
	if !ok {
		return nil
	}
	if workspaceID == 0 {
		delete(creds, instance)
	} else {
		delete(byWorkspace, workspaceKey(workspaceID))
		if len(byWorkspace) == 0 {
			delete(creds, instance)
		}
	}

	if len(creds) == 0 {
		err := os.Remove(credPath)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return s.write(creds)
}

func (s *Store) load() (credentials, error) {
	f, err := os.Open(filepath.Join(s.dir, credFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return credentials{}, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r, err := age.Decrypt(f, s.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting credentials: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	var creds credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}
	return creds, nil
}

func (s *Store) write(creds credentials) error {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return fmt.Errorf("encrypting credentials: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return fmt.Errorf("encrypting credentials: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("encrypting credentials: %w", err)
	}

	return os.WriteFile(filepath.Join(s.dir, credFileName), buf.Bytes(), 0o600)
}

func workspaceKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
