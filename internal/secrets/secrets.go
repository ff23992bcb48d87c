// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets keeps archive credentials in a directory of plain-text
// files. Each file is one secret: the filename is the key name and the file
// contents (trimmed) are the value.
//
// Credentials for a service are stored under "<service>-username" and
// "<service>-password" (e.g. gaia-username, gaia-password).
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ErrNoCredentials is returned when a service has no stored username.
var ErrNoCredentials = errors.New("no stored credentials")

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged as warnings and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.WithError(err).WithField("secret", name).Warn("Could not read secret")
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// UsernameKey returns the username secret name for service.
func UsernameKey(service string) string { return service + "-username" }

// PasswordKey returns the password secret name for service.
func PasswordKey(service string) string { return service + "-password" }

// Credentials returns the stored username and password for service. A
// stored username without a password returns an empty password and no error
// so the caller can prompt for it.
func Credentials(m map[string]string, service string) (string, string, error) {
	user := m[UsernameKey(service)]
	if user == "" {
		return "", "", fmt.Errorf("%s: %w", service, ErrNoCredentials)
	}
	return user, m[PasswordKey(service)], nil
}

// Store writes the credentials for service into dir with owner-only
// permissions, creating dir if needed. An empty password stores only the
// username.
func Store(dir, service, username, password string) error {
	if service == "" || username == "" {
		return fmt.Errorf("storing credentials: service and username are required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating secrets directory %s: %w", dir, err)
	}
	if err := writeSecret(dir, UsernameKey(service), username); err != nil {
		return err
	}
	if password == "" {
		return nil
	}
	return writeSecret(dir, PasswordKey(service), password)
}

// Remove deletes the stored credentials for service. Missing files are not
// an error.
func Remove(dir, service string) error {
	for _, key := range []string{UsernameKey(service), PasswordKey(service)} {
		err := os.Remove(filepath.Join(dir, key))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing secret %s: %w", key, err)
		}
	}
	return nil
}

func writeSecret(dir, key, value string) error {
	path := filepath.Join(dir, key)
	if err := os.WriteFile(path, []byte(value+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing secret %s: %w", key, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("securing secret %s: %w", key, err)
	}
	return nil
}
