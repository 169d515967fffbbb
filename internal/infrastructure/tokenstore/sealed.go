package tokenstore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/homeservice/marketplace-agent/internal/core/domain"
	"github.com/homeservice/marketplace-agent/internal/core/ports"
)

const (
	keySize   = 32
	nonceSize = 24
	hkdfInfo  = "marketplace-agent token store v1"
)

// ErrUnsealable matches domain.ErrUnreadableToken, so the session store
// discards the value instead of retrying it on every start.
var ErrUnsealable = fmt.Errorf("%w: stored token cannot be decrypted", domain.ErrUnreadableToken)

// Sealed encrypts the bearer token before it reaches the wrapped store.
// The role cache is not secret and is passed through unchanged.
type Sealed struct {
	next ports.TokenStore
	key  [keySize]byte
}

// NewSealed derives the encryption key from secret with HKDF-SHA256.
func NewSealed(next ports.TokenStore, secret string) (*Sealed, error) {
	if secret == "" {
		return nil, errors.New("tokenstore: empty encryption secret")
	}
	s := &Sealed{next: next}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("tokenstore: derive key: %w", err)
	}
	return s, nil
}

var _ ports.TokenStore = (*Sealed)(nil)

// LoadToken returns ErrUnsealable for a value that was not written with the
// same secret.
func (s *Sealed) LoadToken(ctx context.Context) (string, error) {
	sealed, err := s.next.LoadToken(ctx)
	if err != nil || sealed == "" {
		return "", err
	}
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrUnsealable
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrUnsealable
	}
	return string(plain), nil
}

func (s *Sealed) SaveToken(ctx context.Context, token string) error {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("tokenstore: nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(token), &nonce, &s.key)
	return s.next.SaveToken(ctx, base64.RawURLEncoding.EncodeToString(box))
}

func (s *Sealed) LoadRoles(ctx context.Context) ([]domain.Role, error) {
	return s.next.LoadRoles(ctx)
}

func (s *Sealed) SaveRoles(ctx context.Context, roles []domain.Role) error {
	return s.next.SaveRoles(ctx, roles)
}

func (s *Sealed) Clear(ctx context.Context) error {
	return s.next.Clear(ctx)
}
