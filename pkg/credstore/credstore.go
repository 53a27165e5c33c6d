// Package credstore stores proxy credentials in the operating system's
// native keyring so proxy passwords never have to live in config files.
package credstore

import (
	"github.com/zalando/go-keyring"
)

const defaultService = "sessiond"

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
)

// Store reads and writes named secrets under a single keyring service.
type Store struct {
	Service string
}

func New() *Store {
	return &Store{Service: defaultService}
}

// Set saves a secret under the given name, replacing any previous value.
func (s *Store) Set(name, value string) error {
	return keyringSet(s.Service, name, value)
}

// Get returns the secret stored under the given name.
func (s *Store) Get(name string) (string, error) {
	return keyringGet(s.Service, name)
}

// Delete removes the secret stored under the given name.
func (s *Store) Delete(name string) error {
	return keyringDelete(s.Service, name)
}

// Lookup adapts the store to the callback shape the config layer uses
// to resolve auth_secret references.
func (s *Store) Lookup(name string) (string, error) {
	return s.Get(name)
}
