// This file implements the JSON-file member store. Phone numbers are
// encrypted at rest when an encryption key is configured; loading handles
// both encrypted and plain-text phones so existing files keep working.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zhanghealth/zhanghealth/internal/models"
	"github.com/zhanghealth/zhanghealth/internal/secrets"
	"github.com/zhanghealth/zhanghealth/internal/util"
)

// MemberStore manages the member roster in a single JSON file. Writes are
// whole-file and last-write-wins; the mutex serializes them within one
// process.
type MemberStore struct {
	path   string
	cipher *secrets.Cipher
	mu     sync.Mutex
}

// memberFile is the on-disk layout of the roster.
type memberFile struct {
	Members   []models.Member `json:"members"`
	UpdatedAt string          `json:"updated_at"`
}

// NewMemberStore creates a member store backed by the given file. The
// directory is created if missing.
func NewMemberStore(path string, cipher *secrets.Cipher) (*MemberStore, error) {
	if path == "" {
		return nil, fmt.Errorf("member store path not set")
	}
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		slog.Error("MemberStore.New: failed to create data directory", "error", err, "path", path)
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &MemberStore{path: path, cipher: cipher}, nil
}

// Load reads all members from the file. A missing file is an empty roster,
// not an error.
func (s *MemberStore) Load() ([]models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *MemberStore) loadLocked() ([]models.Member, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("MemberStore.Load: members file not found, returning empty roster", "path", s.path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read members file: %w", err)
	}

	var file memberFile
	if err := json.Unmarshal(data, &file); err != nil {
		slog.Error("MemberStore.Load: failed to parse members file", "error", err, "path", s.path)
		return nil, fmt.Errorf("failed to parse members file: %w", err)
	}

	for i := range file.Members {
		file.Members[i].Phone = s.cipher.DecryptField(file.Members[i].Phone)
	}
	return file.Members, nil
}

// Save writes the full roster back to the file, encrypting phone numbers
// at rest.
func (s *MemberStore) Save(members []models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(members)
}

func (s *MemberStore) saveLocked(members []models.Member) error {
	stored := make([]models.Member, len(members))
	copy(stored, members)
	for i := range stored {
		stored[i].Phone = s.cipher.EncryptField(stored[i].Phone)
	}

	file := memberFile{
		Members:   stored,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode members: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		slog.Error("MemberStore.Save: write failed", "error", err, "path", s.path)
		return fmt.Errorf("failed to write members file: %w", err)
	}
	slog.Info("MemberStore.Save: roster saved", "count", len(members), "path", s.path)
	return nil
}

// Add validates a member, assigns an ID if missing, and appends it to the
// roster.
func (s *MemberStore) Add(m models.Member) (models.Member, error) {
	if err := m.Validate(); err != nil {
		return models.Member{}, err
	}
	if m.ID == "" {
		m.ID = util.GenerateMemberID()
	}
	if m.ExercisePlan == "" {
		m.ExercisePlan = "senior_beginner"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	members, err := s.loadLocked()
	if err != nil {
		return models.Member{}, err
	}
	for _, existing := range members {
		if existing.Phone == m.Phone {
			return models.Member{}, fmt.Errorf("member with phone %s already exists", m.Phone)
		}
	}
	members = append(members, m)
	if err := s.saveLocked(members); err != nil {
		return models.Member{}, err
	}
	return m, nil
}

// FindByPhone returns the member with the given (decrypted) phone number.
func (s *MemberStore) FindByPhone(phone string) (models.Member, error) {
	members, err := s.Load()
	if err != nil {
		return models.Member{}, err
	}
	for _, m := range members {
		if m.Phone == phone {
			return m, nil
		}
	}
	return models.Member{}, models.ErrMemberNotFound
}

// FindByID returns the member with the given ID.
func (s *MemberStore) FindByID(id string) (models.Member, error) {
	members, err := s.Load()
	if err != nil {
		return models.Member{}, err
	}
	for _, m := range members {
		if m.ID == id {
			return m, nil
		}
	}
	return models.Member{}, models.ErrMemberNotFound
}

// UpdateByPhone applies a mutation to the member with the given phone and
// persists the roster.
func (s *MemberStore) UpdateByPhone(phone string, apply func(*models.Member)) (models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.loadLocked()
	if err != nil {
		return models.Member{}, err
	}
	for i := range members {
		if members[i].Phone == phone {
			apply(&members[i])
			if err := s.saveLocked(members); err != nil {
				return models.Member{}, err
			}
			slog.Info("MemberStore.UpdateByPhone: member updated", "name", members[i].Name)
			return members[i], nil
		}
	}
	slog.Warn("MemberStore.UpdateByPhone: member not found")
	return models.Member{}, models.ErrMemberNotFound
}

// UpdateByID applies a mutation to the member with the given ID and
// persists the roster.
func (s *MemberStore) UpdateByID(id string, apply func(*models.Member)) (models.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.loadLocked()
	if err != nil {
		return models.Member{}, err
	}
	for i := range members {
		if members[i].ID == id {
			apply(&members[i])
			if err := s.saveLocked(members); err != nil {
				return models.Member{}, err
			}
			return members[i], nil
		}
	}
	return models.Member{}, models.ErrMemberNotFound
}
