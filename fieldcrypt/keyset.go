package fieldcrypt

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fernet/fernet-go"
	"golang.org/x/crypto/hkdf"
)

// Standard sentinel errors for keyset operations.
var (
	// ErrNoKeys is returned when a keyset is built from an empty secret list.
	ErrNoKeys = errors.New("fieldcrypt: no secrets provided")

	// ErrInvalidKey is returned when a raw secret is not a valid Fernet key.
	ErrInvalidKey = errors.New("fieldcrypt: invalid raw key")

	// ErrDecryptionFailed is returned when a token cannot be decrypted with
	// any key in the keyset.
	ErrDecryptionFailed = errors.New("fieldcrypt: decryption failed")
)

// hkdfInfo binds derived keys to this package so the same application secret
// used elsewhere (sessions, signing) yields an unrelated encryption key.
var hkdfInfo = []byte("veloxdb/fieldcrypt")

// Keyset holds an ordered list of Fernet keys. The first key encrypts all
// new values; every key is a decryption candidate, newest first, so secrets
// can be rotated without re-encrypting stored rows.
type Keyset struct {
	keys []*fernet.Key
	ttl  time.Duration
}

type options struct {
	rawKeys bool
	ttl     time.Duration
}

// Option configures keyset construction.
type Option func(*options)

// WithRawKeys treats the provided secrets as base64url-encoded 32-byte
// Fernet keys instead of deriving keys from them.
func WithRawKeys() Option {
	return func(o *options) { o.rawKeys = true }
}

// WithTTL rejects tokens older than d on decryption. The zero duration
// (the default) disables age checking.
func WithTTL(d time.Duration) Option {
	return func(o *options) { o.ttl = d }
}

// New builds a Keyset from the given secrets, ordered newest first.
// Unless WithRawKeys is set, each secret is expanded to a Fernet key with
// HKDF-SHA256; arbitrary strings (passwords, application secret keys) are
// valid input. The derivation is deterministic: the same secret always
// yields the same key.
func New(secrets []string, opts ...Option) (*Keyset, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if len(secrets) == 0 {
		return nil, ErrNoKeys
	}
	ks := &Keyset{keys: make([]*fernet.Key, 0, len(secrets)), ttl: o.ttl}
	for i, s := range secrets {
		if o.rawKeys {
			k, err := fernet.DecodeKey(s)
			if err != nil {
				return nil, fmt.Errorf("%w at index %d: %v", ErrInvalidKey, i, err)
			}
			ks.keys = append(ks.keys, k)
			continue
		}
		ks.keys = append(ks.keys, DeriveKey(s))
	}
	return ks, nil
}

// DeriveKey expands an arbitrary secret into a Fernet key using HKDF-SHA256
// with a nil salt and a fixed info string. The expansion reads exactly the
// 32 bytes a Fernet key requires.
func DeriveKey(secret string) *fernet.Key {
	r := hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo)
	var k fernet.Key
	if _, err := io.ReadFull(r, k[:]); err != nil {
		// HKDF-SHA256 can expand up to 255*32 bytes; reading 32 cannot fail.
		panic(fmt.Sprintf("fieldcrypt: hkdf expand: %v", err))
	}
	return &k
}

// GenerateSecret returns a fresh random secret encoded as a Fernet key
// string. The result is usable both as a raw key (WithRawKeys) and as a
// derivation input.
func GenerateSecret() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", fmt.Errorf("fieldcrypt: generate key: %w", err)
	}
	return k.Encode(), nil
}

// Encrypt encrypts plaintext into a Fernet token using the newest key.
func (k *Keyset) Encrypt(plaintext []byte) ([]byte, error) {
	if len(k.keys) == 0 {
		return nil, ErrNoKeys
	}
	tok, err := fernet.EncryptAndSign(plaintext, k.keys[0])
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: encrypt: %w", err)
	}
	return tok, nil
}

// Decrypt verifies and decrypts a Fernet token, trying each key in order
// and returning the plaintext from the first key that authenticates.
// The per-key work is a constant-time HMAC check; no additional timing
// channel is introduced beyond the primitive itself.
func (k *Keyset) Decrypt(token []byte) ([]byte, error) {
	if len(k.keys) == 0 {
		return nil, ErrNoKeys
	}
	msg := fernet.VerifyAndDecrypt(token, k.ttl, k.keys)
	if msg == nil {
		return nil, ErrDecryptionFailed
	}
	return msg, nil
}

// Len returns the number of keys in the keyset.
func (k *Keyset) Len() int { return len(k.keys) }

// Keyset implements Provider, so a static keyset can be used anywhere a
// rotating source is accepted.
func (k *Keyset) Keyset() *Keyset { return k }

// Provider supplies the current keyset. It is implemented by *Keyset itself
// and by *Source, which swaps keysets when the secrets file changes.
type Provider interface {
	Keyset() *Keyset
}

// DecodeRawKey reports whether s is a well-formed base64url-encoded
// 32-byte Fernet key.
func DecodeRawKey(s string) error {
	if _, err := fernet.DecodeKey(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return nil
}

