// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	"github.com/zalando/go-keyring"

	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// indexSuffix names the entry holding a JSON list of a service's keys.
// go-keyring cannot enumerate keys on its own.
const indexSuffix = "::keys-index"

// KeyringStore stores secrets in the OS keyring: Keychain on macOS,
// secret-service on Linux, Credential Manager on Windows.
type KeyringStore struct{}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkRef("store", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return tserr.Wrapf(err, tserr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		if slices.Contains(keys, key) {
			return keys
		}
		return append(keys, key)
	})
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkRef("retrieve", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", tserr.Errorf(tserr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return "", tserr.Wrapf(err, tserr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkRef("delete", service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return tserr.Errorf(tserr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	case err != nil:
		return tserr.Wrapf(err, tserr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		return slices.DeleteFunc(keys, func(k string) bool { return k == key })
	})
}

// List returns the keys stored under service in insertion order.
func (s *KeyringStore) List(service string) ([]string, error) {
	raw, err := keyring.Get(service, service+indexSuffix)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, tserr.Wrapf(err, tserr.CodeSecretListFailure, "loading key index for %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, tserr.Wrapf(err, tserr.CodeSecretListFailure, "decoding key index for %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) updateIndex(service string, edit func([]string) []string) error {
	keys, err := s.List(service)
	if err != nil {
		return err
	}
	keys = edit(keys)

	indexKey := service + indexSuffix
	if len(keys) == 0 {
		if err := keyring.Delete(service, indexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("removing empty key index", "service", service, "error", err)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return tserr.Wrapf(err, tserr.CodeSecretListFailure, "encoding key index for %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return tserr.Wrapf(err, tserr.CodeSecretListFailure, "saving key index for %s", service)
	}
	return nil
}

func checkRef(op, service, key string) error {
	if service == "" {
		return tserr.Errorf(tserr.CodeSecretInvalidInput, "secret %s: service must not be empty", op)
	}
	if key == "" {
		return tserr.Errorf(tserr.CodeSecretInvalidInput, "secret %s: key must not be empty", op)
	}
	return nil
}
