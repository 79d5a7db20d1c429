package profiles

import (
	"context"
	"slices"
	"sync"

	"github.com/koscakluka/ema-chef/core/recipes"
)

// MemoryStore is a Store for tests and local runs.
type MemoryStore struct {
	mu       sync.Mutex
	profiles map[string]Profile
	lists    map[string]recipes.GroceryList
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: map[string]Profile{}, lists: map[string]recipes.GroceryList{}}
}

func (s *MemoryStore) LoadProfile(_ context.Context, userID string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	profile.DishHistory = slices.Clone(profile.DishHistory)
	return profile, nil
}

func (s *MemoryStore) SaveProfile(_ context.Context, userID string, profile Profile) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	profile.DishHistory = slices.Clone(profile.DishHistory)
	s.profiles[userID] = profile
	return nil
}

func (s *MemoryStore) LoadGroceryList(_ context.Context, userID string) (recipes.GroceryList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.lists[userID].Clone()
	if list == nil {
		list = recipes.GroceryList{}
	}
	return list, nil
}

func (s *MemoryStore) SaveGroceryList(_ context.Context, userID string, list recipes.GroceryList) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists[userID] = list.Clone()
	return nil
}
