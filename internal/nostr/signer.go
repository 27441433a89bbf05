package nostr

import (
	"context"
	"errors"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
)

// ErrNoSigner indicates no signing capability is available. Every mutation
// is inert without one; callers surface this as a login/connect prompt.
var ErrNoSigner = errors.New("no signer available")

// Signer is the external signing capability. The secret key is never held
// by the engines that consume this interface.
type Signer interface {
	// PublicKey returns the hex public key of the signing identity.
	PublicKey(ctx context.Context) (string, error)

	// Sign fills in the event's pubkey, id and signature.
	Sign(ctx context.Context, event *nostr.Event) error

	// Encrypt encrypts plaintext for the given peer pubkey (NIP-04).
	Encrypt(ctx context.Context, peerPubkey, plaintext string) (string, error)

	// Decrypt decrypts ciphertext from the given peer pubkey (NIP-04).
	Decrypt(ctx context.Context, peerPubkey, ciphertext string) (string, error)
}

// KeystoreSigner implements Signer over a local Keystore.
type KeystoreSigner struct {
	keystore Keystore
}

// NewKeystoreSigner wraps a keystore as a Signer
func NewKeystoreSigner(ks Keystore) *KeystoreSigner {
	return &KeystoreSigner{keystore: ks}
}

// PublicKey derives the public key from the stored secret
func (s *KeystoreSigner) PublicKey(ctx context.Context) (string, error) {
	sk, err := s.keystore.Load()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSigner, err)
	}

	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		return "", fmt.Errorf("failed to derive public key: %w", err)
	}

	return pk, nil
}

// Sign signs the event with the stored secret key
func (s *KeystoreSigner) Sign(ctx context.Context, event *nostr.Event) error {
	sk, err := s.keystore.Load()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoSigner, err)
	}

	return event.Sign(sk)
}

// Encrypt encrypts plaintext for peerPubkey using NIP-04
func (s *KeystoreSigner) Encrypt(ctx context.Context, peerPubkey, plaintext string) (string, error) {
	sk, err := s.keystore.Load()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSigner, err)
	}

	shared, err := nip04.ComputeSharedSecret(peerPubkey, sk)
	if err != nil {
		return "", fmt.Errorf("failed to compute shared secret: %w", err)
	}

	return nip04.Encrypt(plaintext, shared)
}

// Decrypt decrypts ciphertext from peerPubkey using NIP-04
func (s *KeystoreSigner) Decrypt(ctx context.Context, peerPubkey, ciphertext string) (string, error) {
	sk, err := s.keystore.Load()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSigner, err)
	}

	shared, err := nip04.ComputeSharedSecret(peerPubkey, sk)
	if err != nil {
		return "", fmt.Errorf("failed to compute shared secret: %w", err)
	}

	return nip04.Decrypt(ciphertext, shared)
}
