package auth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "shopexport"
	keyringPrefix  = "profile:"
)

// KeyringStore uses the system keychain for credential storage
type KeyringStore struct{}

// NewKeyringStore creates a new keyring-based credential store
func NewKeyringStore() (*KeyringStore, error) {
	// Test if keyring is available
	testKey := keyringPrefix + "__test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves credentials to the system keychain
func (k *KeyringStore) Store(profile *Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	key := keyringPrefix + profile.Name
	if err := keyring.Set(keyringService, key, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	// Maintain an index of profile names since keyring doesn't support listing
	return k.updateIndex(profile.Name, true)
}

// Retrieve gets credentials from the system keychain
func (k *KeyringStore) Retrieve(name string) (*Profile, error) {
	key := keyringPrefix + name
	data, err := keyring.Get(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	return &profile, nil
}

// List returns all profiles stored in the keychain
func (k *KeyringStore) List() ([]*Profile, error) {
	names, err := k.getIndex()
	if err != nil {
		return nil, err
	}

	var profiles []*Profile
	for _, name := range names {
		profile, err := k.Retrieve(name)
		if err != nil {
			continue
		}
		profiles = append(profiles, profile)
	}

	return profiles, nil
}

// Delete removes credentials from the system keychain
func (k *KeyringStore) Delete(name string) error {
	key := keyringPrefix + name
	if err := keyring.Delete(keyringService, key); err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	return k.updateIndex(name, false)
}

// Exists checks if credentials exist in the keychain
func (k *KeyringStore) Exists(name string) bool {
	key := keyringPrefix + name
	_, err := keyring.Get(keyringService, key)
	return err == nil
}

// updateIndex maintains a list of stored profile names
func (k *KeyringStore) updateIndex(name string, add bool) error {
	names, _ := k.getIndex()

	filtered := names[:0]
	for _, n := range names {
		if n != name {
			filtered = append(filtered, n)
		}
	}
	if add {
		filtered = append(filtered, name)
	}

	if len(filtered) == 0 {
		_ = keyring.Delete(keyringService, "index")
		return nil
	}

	return keyring.Set(keyringService, "index", strings.Join(filtered, "\n"))
}

// getIndex retrieves the list of stored profile names
func (k *KeyringStore) getIndex() ([]string, error) {
	data, err := keyring.Get(keyringService, "index")
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, n := range strings.Split(data, "\n") {
		if n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}
