package profiles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/koscakluka/ema-chef/core/recipes"
)

const (
	profileFile     = "profile.json"
	groceryListFile = "grocery_list.json"
)

// FileStore keeps one directory per user under Dir.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(userID, name string) (string, error) {
	if err := validateUserID(userID); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, userID, name), nil
}

func (s *FileStore) read(userID, name string, v any) error {
	path, err := s.path(userID, name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	} else if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) write(userID, name string, v any) error {
	path, err := s.path(userID, name)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) LoadProfile(_ context.Context, userID string) (Profile, error) {
	var profile Profile
	if err := s.read(userID, profileFile, &profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func (s *FileStore) SaveProfile(_ context.Context, userID string, profile Profile) error {
	return s.write(userID, profileFile, profile)
}

func (s *FileStore) LoadGroceryList(_ context.Context, userID string) (recipes.GroceryList, error) {
	var list recipes.GroceryList
	if err := s.read(userID, groceryListFile, &list); err != nil {
		if errors.Is(err, ErrNotFound) {
			return recipes.GroceryList{}, nil
		}
		return nil, err
	}
	return list, nil
}

func (s *FileStore) SaveGroceryList(_ context.Context, userID string, list recipes.GroceryList) error {
	return s.write(userID, groceryListFile, list)
}
