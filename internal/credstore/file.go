package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/stemsi/conduct-console/internal/model"
)

// fileDocument is the on-disk layout of a FileStore.
type fileDocument struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	Identity     *model.Identity `json:"identity,omitempty"`
}

// FileStore persists the credential as a JSON document readable only by the owner.
// Writes go to a temp file that is synced and renamed over the target, so a reader
// sees either the old pair or the new pair.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a FileStore at path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the credential file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Save(_ context.Context, cred model.Credential) error {
	if !cred.Valid() {
		return incompleteErr()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(fileDocument{AccessToken: cred.AccessToken, RefreshToken: cred.RefreshToken})
}

func (s *FileStore) Load(_ context.Context) (*model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil || doc == nil {
		return nil, err
	}
	cred := model.Credential{AccessToken: doc.AccessToken, RefreshToken: doc.RefreshToken}
	if !cred.Valid() {
		return nil, nil
	}
	return &cred, nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageErr("remove credential file", err)
	}
	return nil
}

func (s *FileStore) SaveIdentity(_ context.Context, identity model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	doc.Identity = &identity
	return s.write(*doc)
}

func (s *FileStore) LoadIdentity(_ context.Context) (*model.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.Identity, nil
}

func (s *FileStore) read() (*fileDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, storageErr("read credential file", err)
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, storageErr("decode credential file", err)
	}
	return &doc, nil
}

func (s *FileStore) write(doc fileDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return storageErr("encode credential file", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return storageErr("create credential dir", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return storageErr("create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return storageErr("chmod temp file", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return storageErr("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return storageErr("sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return storageErr("close temp file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return storageErr("replace credential file", err)
	}
	return nil
}
