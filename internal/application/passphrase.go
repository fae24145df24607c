package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidPassphraseHash         = errors.New("invalid passphrase hash format")
	ErrIncompatiblePassphraseVersion = errors.New("incompatible passphrase hash version")
)

type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// CreatePassphraseHash derives an encoded argon2id hash suitable for
// COHORT_ADMIN_PASSPHRASE_HASH.
func CreatePassphraseHash(passphrase string, params Argon2idParams) (string, error) {
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(passphrase), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	// $argon2id$v=19$m=...,t=...,p=...$salt$hash
	format := "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"
	return fmt.Sprintf(format, argon2.Version, params.Memory, params.Iterations, params.Parallelism, b64Salt, b64Hash), nil
}

// VerifyPassphrase checks passphrase against an encoded argon2id hash.
func VerifyPassphrase(encodedHash, passphrase string) error {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return ErrInvalidPassphraseHash
	}

	if parts[1] != "argon2id" {
		return ErrInvalidPassphraseHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return err
	}
	if version != argon2.Version {
		return ErrIncompatiblePassphraseVersion
	}

	var params Argon2idParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return err
	}

	decodedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return err
	}
	params.KeyLength = uint32(len(decodedHash))

	comparisonHash := argon2.IDKey([]byte(passphrase), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	if subtle.ConstantTimeCompare(decodedHash, comparisonHash) == 1 {
		return nil
	}

	return ErrInvalidPassphrase
}

// AdminGate verifies admin passphrases against one configured hash.
type AdminGate struct {
	hash string
}

// NewAdminGate returns a gate for encodedHash. An empty hash rejects every
// passphrase.
func NewAdminGate(encodedHash string) *AdminGate {
	return &AdminGate{hash: strings.TrimSpace(encodedHash)}
}

// Check returns ErrUnauthorized unless passphrase matches the configured hash.
func (g *AdminGate) Check(passphrase string) error {
	if g == nil || g.hash == "" || passphrase == "" {
		return ErrUnauthorized
	}
	if err := VerifyPassphrase(g.hash, passphrase); err != nil {
		if errors.Is(err, ErrInvalidPassphrase) {
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return err
	}
	return nil
}
