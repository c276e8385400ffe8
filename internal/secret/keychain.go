package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const keychainService = "epilogue"

// errSecItemNotFound is the exit status of `security` for a missing item.
const errSecItemNotFound = 44

// KeychainStore implements SecretStore on the macOS Keychain through the
// `security` command line tool. Items are generic passwords under the
// "epilogue" service, one account per key.
type KeychainStore struct {
	service string
	command func(name string, args ...string) *exec.Cmd
}

// NewKeychainStore creates a new KeychainStore.
func NewKeychainStore() *KeychainStore {
	return &KeychainStore{service: keychainService, command: exec.Command}
}

// Set stores value under key, replacing an existing item.
func (k *KeychainStore) Set(key string, value []byte) error {
	_, err := k.security("add-generic-password", "-a", key, "-s", k.service, "-w", string(value), "-U")
	if err != nil {
		return fmt.Errorf("keychain set %s: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key, or nil when there is none.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, err := k.security("find-generic-password", "-a", key, "-s", k.service, "-w")
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keychain get %s: %w", key, err)
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// Delete removes key. A missing item is not an error.
func (k *KeychainStore) Delete(key string) error {
	_, err := k.security("delete-generic-password", "-a", key, "-s", k.service)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("keychain delete %s: %w", key, err)
	}
	return nil
}

// security runs the tool and returns its stdout. Failures carry stderr.
func (k *KeychainStore) security(args ...string) ([]byte, error) {
	out, err := k.command("security", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w", strings.TrimSpace(string(exitErr.Stderr)), err)
		}
		return nil, err
	}
	return out, nil
}

func isNotFound(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == errSecItemNotFound
}
