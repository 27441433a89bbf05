package nostr

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/zalando/go-keyring"
)

const (
	appID   = "io.moonshot.client"
	userKey = "userkey"
)

// Keystore stores the local secret key. The OS keyring is preferred; a
// file under the config directory is the fallback when no keyring daemon
// is reachable.
type Keystore interface {
	Save(keyHex string) error
	Load() (string, error)
	Erase() error
}

// StartKeystore probes the OS keyring and falls back to a file store
func StartKeystore() Keystore {
	if err := keyring.Set(appID, "probe", "ok"); err != nil {
		return FileKeystore{}
	}
	_ = keyring.Delete(appID, "probe")

	return KeyringStore{}
}

// SaveKey normalizes an nsec or hex secret key and stores it
func SaveKey(ks Keystore, value string) error {
	if prefix, decoded, err := nip19.Decode(value); err == nil && prefix == "nsec" {
		return ks.Save(decoded.(string))
	}

	// Validate raw hex by deriving the public key from it
	if _, err := nostr.GetPublicKey(value); err != nil {
		return fmt.Errorf("not a valid secret key: %w", err)
	}

	return ks.Save(value)
}

// IsHexPubkey reports whether s looks like a 32-byte hex public key
func IsHexPubkey(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// KeyringStore keeps the key in the OS keyring
type KeyringStore struct{}

func (KeyringStore) Save(key string) error {
	return keyring.Set(appID, userKey, key)
}

func (KeyringStore) Load() (string, error) {
	key, err := keyring.Get(appID, userKey)
	if err != nil {
		return "", fmt.Errorf("couldn't load key from keyring: %w", err)
	}
	return key, nil
}

func (KeyringStore) Erase() error {
	return keyring.Delete(appID, userKey)
}

// FileKeystore keeps the key in a file under ~/.config/moonshot
type FileKeystore struct{}

func (FileKeystore) path() (string, error) {
	return homedir.Expand("~/.config/moonshot")
}

func (f FileKeystore) prepareDirectory() (string, error) {
	path, err := f.path()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return "", err
	}
	return path, nil
}

func (f FileKeystore) Save(key string) error {
	path, err := f.prepareDirectory()
	if err != nil {
		return err
	}
	keybin, err := hex.DecodeString(key)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(path, "key"), keybin, 0600)
}

func (f FileKeystore) Load() (string, error) {
	path, err := f.path()
	if err != nil {
		return "", err
	}

	file := filepath.Join(path, "key")
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read key from file (%s): %w", file, err)
	}
	if len(data) != 32 {
		return "", fmt.Errorf("key (%s) is not 32 bytes", file)
	}

	return hex.EncodeToString(data), nil
}

// Erase removes only the key file; anything else living under the
// config directory is left alone.
func (f FileKeystore) Erase() error {
	path, err := f.path()
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(path, "key")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryKeystore holds a key in memory only. Useful for tests and for
// ephemeral identities.
type MemoryKeystore struct {
	Key string
}

func (m *MemoryKeystore) Save(key string) error {
	m.Key = key
	return nil
}

func (m *MemoryKeystore) Load() (string, error) {
	if m.Key == "" {
		return "", fmt.Errorf("no key set")
	}
	return m.Key, nil
}

func (m *MemoryKeystore) Erase() error {
	m.Key = ""
	return nil
}
