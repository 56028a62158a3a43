// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

// Package secrets keeps provider credentials out of config files. Config
// values of the form keyring://service/key are replaced with the secret
// stored under that service and key.
package secrets

// DefaultService is the keyring service the CLI stores secrets under.
const DefaultService = "toolsearch"

// Store provides secret storage keyed by service and key name.
type Store interface {
	Store(service, key, value string) error
	// Retrieve fails with CodeSecretNotFound when the key does not exist.
	Retrieve(service, key string) (string, error)
	// Delete fails with CodeSecretNotFound when the key does not exist.
	Delete(service, key string) error
	List(service string) ([]string, error)
}
