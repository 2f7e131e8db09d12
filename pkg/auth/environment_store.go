package auth

import (
	"os"
)

// EnvironmentStore reads credentials from environment variables.
// It is read-only and intended for CI environments.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(profile *Profile) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables.
// The name parameter is ignored since the environment holds one profile.
func (e *EnvironmentStore) Retrieve(name string) (*Profile, error) {
	token := os.Getenv("SHOPEXPORT_API_TOKEN")
	if token == "" {
		return nil, ErrCredentialsNotFound
	}

	profile := &Profile{
		Name:    "environment",
		BaseURL: os.Getenv("SHOPEXPORT_API_BASE_URL"),
		Token:   token,
	}

	return profile, nil
}

// List returns the environment profile if set
func (e *EnvironmentStore) List() ([]*Profile, error) {
	profile, err := e.Retrieve("")
	if err != nil {
		return nil, nil
	}
	return []*Profile{profile}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment token is set
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv("SHOPEXPORT_API_TOKEN") != ""
}
