package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cuemby/flotilla/pkg/log"
	"github.com/cuemby/flotilla/pkg/types"
)

// UpdateResult is the outcome of a configuration update: the target id now
// in effect and any validation errors that blocked the proposed change.
type UpdateResult struct {
	TargetID string
	Errors   []error
}

// Updater compares a proposed service spec against the current target,
// validates the change, and stores a new generation when accepted.
type Updater struct {
	store      *Store
	validators []Validator
}

// NewUpdater creates an updater with the given validators.
func NewUpdater(store *Store, validators []Validator) *Updater {
	return &Updater{store: store, validators: validators}
}

// Update applies the proposed spec. If the spec is identical to the current
// target the existing target id is returned unchanged. If validation rejects
// the change, the existing target stays in effect and the validation errors
// are reported in the result. Otherwise a new generation is stored and
// becomes the target.
func (u *Updater) Update(proposed *types.ServiceSpec) (UpdateResult, error) {
	logger := log.WithComponent("config-updater")

	if err := proposed.Validate(); err != nil {
		return UpdateResult{}, fmt.Errorf("invalid service spec: %w", err)
	}

	currentID, err := u.store.Target()
	if err != nil && !errors.Is(err, ErrNoTarget) {
		return UpdateResult{}, fmt.Errorf("failed to read config target: %w", err)
	}

	var current *types.ServiceSpec
	if currentID != "" {
		current, err = u.store.Spec(currentID)
		if err != nil {
			return UpdateResult{}, fmt.Errorf("failed to load current config: %w", err)
		}
		if specsEqual(current, proposed) {
			logger.Info().Str("target", currentID).Msg("configuration unchanged")
			return UpdateResult{TargetID: currentID}, nil
		}
	}

	var validationErrs []error
	for _, v := range u.validators {
		validationErrs = append(validationErrs, v.Validate(current, proposed)...)
	}
	if len(validationErrs) > 0 {
		for _, verr := range validationErrs {
			logger.Error().Err(verr).Msg("configuration change rejected")
		}
		return UpdateResult{TargetID: currentID, Errors: validationErrs}, nil
	}

	newID, err := u.store.StoreSpec(proposed)
	if err != nil {
		return UpdateResult{}, err
	}
	if err := u.store.SetTarget(newID); err != nil {
		return UpdateResult{}, fmt.Errorf("failed to set config target: %w", err)
	}
	logger.Info().Str("target", newID).Str("previous", currentID).Msg("configuration updated")
	return UpdateResult{TargetID: newID}, nil
}

func specsEqual(a, b *types.ServiceSpec) bool {
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(aj) == string(bj)
}
