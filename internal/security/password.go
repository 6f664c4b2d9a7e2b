package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

var (
	ErrHashingFailure   = errors.New("password hashing failed")
	ErrPasswordMismatch = errors.New("password does not match")
	ErrCorruptHash      = errors.New("stored password hash is corrupt")
)

// Upper bound on the memory a stored hash may ask for, so a tampered row
// cannot make Verify allocate unbounded memory.
const maxMemoryKiB = 1 << 20

var b64 = base64.RawStdEncoding.Strict()

// HashParams are the argon2id work factors.
type HashParams struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	KeyLen    uint32
	SaltLen   uint32
}

// DefaultHashParams returns the RFC 9106 second recommended profile.
func DefaultHashParams() HashParams {
	return HashParams{
		Time:      1,
		MemoryKiB: 64 * 1024,
		Threads:   4,
		KeyLen:    32,
		SaltLen:   16,
	}
}

// Validate checks the parameters are usable by argon2id.
func (p HashParams) Validate() error {
	switch {
	case p.Time == 0:
		return errors.New("time must be at least 1")
	case p.Threads == 0:
		return errors.New("threads must be at least 1")
	case p.MemoryKiB < 8*uint32(p.Threads):
		return fmt.Errorf("memory must be at least %d KiB for %d threads", 8*uint32(p.Threads), p.Threads)
	case p.MemoryKiB > maxMemoryKiB:
		return fmt.Errorf("memory must be at most %d KiB", maxMemoryKiB)
	case p.KeyLen < 16:
		return errors.New("key length must be at least 16 bytes")
	case p.SaltLen < 8:
		return errors.New("salt length must be at least 8 bytes")
	}
	return nil
}

// PasswordHasher hashes and verifies passwords with argon2id. Hashes use the
// PHC string format so the parameters travel with the digest:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<digest>
type PasswordHasher struct {
	params HashParams

	dummyOnce sync.Once
	dummy     string
}

// NewPasswordHasher creates a hasher using params for new hashes.
// Verification always uses the parameters encoded in the stored hash.
func NewPasswordHasher(params HashParams) *PasswordHasher {
	return &PasswordHasher{params: params}
}

// Hash returns a freshly salted argon2id hash of plaintext. It only fails
// when the configured parameters are unusable.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	if err := h.params.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.MemoryKiB, h.params.Time, h.params.Threads,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

// Verify compares plaintext against a stored hash in constant time.
// Returns nil, ErrPasswordMismatch or ErrCorruptHash.
func (h *PasswordHasher) Verify(plaintext, encoded string) error {
	params, salt, key, err := decodeHash(encoded)
	if err != nil {
		return err
	}

	other := argon2.IDKey([]byte(plaintext), salt, params.Time, params.MemoryKiB, params.Threads, uint32(len(key)))
	if subtle.ConstantTimeCompare(key, other) == 1 {
		return nil
	}
	return ErrPasswordMismatch
}

// DummyHash returns a valid hash of a random password. Login verifies
// against it when the account does not exist so both paths cost the same.
func (h *PasswordHasher) DummyHash() string {
	h.dummyOnce.Do(func() {
		// On failure the dummy stays empty and Verify rejects it as corrupt.
		if secret, err := GenerateSecret(PasswordDefaultLength); err == nil {
			h.dummy, _ = h.Hash(secret)
		}
	})
	return h.dummy
}

func decodeHash(encoded string) (HashParams, []byte, []byte, error) {
	var p HashParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, ErrCorruptHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, ErrCorruptHash
	}

	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &threads); err != nil {
		return p, nil, nil, ErrCorruptHash
	}
	if threads == 0 || threads > 255 {
		return p, nil, nil, ErrCorruptHash
	}
	p.Threads = uint8(threads)

	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, ErrCorruptHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, ErrCorruptHash
	}

	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(key))
	if p.Validate() != nil {
		return p, nil, nil, ErrCorruptHash
	}

	return p, salt, key, nil
}
