package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cuemby/flotilla/pkg/storage"
	"github.com/cuemby/flotilla/pkg/types"
	"github.com/google/uuid"
)

const (
	targetKey    = "config/target"
	configPrefix = "config/"
)

// ErrNoTarget is returned when no config target has been stored yet.
var ErrNoTarget = errors.New("no config target set")

// Store persists service specification generations and the pointer to the
// currently targeted generation. It layers on the state store's property
// space rather than owning its own database.
type Store struct {
	store storage.Store
}

// NewStore creates a config store over the given state store.
func NewStore(store storage.Store) *Store {
	return &Store{store: store}
}

// StoreSpec persists a new spec generation and returns its target id.
func (s *Store) StoreSpec(spec *types.ServiceSpec) (string, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("failed to serialize service spec: %w", err)
	}
	id := uuid.New().String()
	if err := s.store.PutProperty(configPrefix+id, data); err != nil {
		return "", fmt.Errorf("failed to store service spec: %w", err)
	}
	return id, nil
}

// Spec fetches the spec generation stored under the given target id.
func (s *Store) Spec(targetID string) (*types.ServiceSpec, error) {
	data, err := s.store.GetProperty(configPrefix + targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch config %s: %w", targetID, err)
	}
	var spec types.ServiceSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to deserialize config %s: %w", targetID, err)
	}
	return &spec, nil
}

// SetTarget points the current target at the given generation.
func (s *Store) SetTarget(targetID string) error {
	return s.store.PutProperty(targetKey, []byte(targetID))
}

// Target returns the current target id, or ErrNoTarget.
func (s *Store) Target() (string, error) {
	data, err := s.store.GetProperty(targetKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrNoTarget
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
