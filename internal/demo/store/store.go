// Package store persists the DemoUser record of each browser profile.
//
// Every backend stores the whole record as one JSON document: Save overwrites,
// Clear removes, and the last writer wins. Load reports sentinel.ErrNotFound
// when nothing is stored and sentinel.ErrCorrupt when the stored bytes do not
// decode to a valid DemoUser.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"decentrakyc/internal/demo/models"
	"decentrakyc/pkg/platform/sentinel"
)

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks Store

// RecordKey is the key prefix of the stored record, one per profile.
const RecordKey = "kyc-demo-user"

// Store is the persistence port of the demo session provider.
type Store interface {
	Load(ctx context.Context, profile string) (*models.DemoUser, error)
	Save(ctx context.Context, profile string, user *models.DemoUser) error
	Clear(ctx context.Context, profile string) error
}

// Encode serializes a DemoUser to its stored JSON form.
func Encode(user *models.DemoUser) ([]byte, error) {
	if user == nil {
		return nil, fmt.Errorf("encode demo user: nil user")
	}
	data, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("encode demo user: %w", err)
	}
	return data, nil
}

// Decode parses a stored record, rehydrating timestamps from their RFC 3339
// strings. Malformed or invalid records wrap sentinel.ErrCorrupt.
func Decode(data []byte) (*models.DemoUser, error) {
	var user models.DemoUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrCorrupt, err)
	}
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrCorrupt, err)
	}
	if user.Documents == nil {
		user.Documents = []models.DemoDocument{}
	}
	return &user, nil
}

func requireProfile(profile string) error {
	if profile == "" {
		return fmt.Errorf("profile is required")
	}
	return nil
}
