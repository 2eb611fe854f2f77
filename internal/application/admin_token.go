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
	ErrInvalidTokenHash         = errors.New("invalid admin token hash format")
	ErrIncompatibleTokenVersion = errors.New("incompatible admin token hash version")
)

// Argon2idParams tunes the admin token hash.
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

// HashAdminToken returns the PHC-style $argon2id$ encoding of token.
func HashAdminToken(token string, params Argon2idParams) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", fieldError("token", "must not be empty")
	}
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(token), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	// $argon2id$v=19$m=...,t=...,p=...$salt$hash
	format := "$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s"
	return fmt.Sprintf(format, argon2.Version, params.Memory, params.Iterations, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(hash)), nil
}

// AdminAuthenticator checks bearer tokens against a configured argon2id hash.
type AdminAuthenticator struct {
	hash string
}

// NewAdminAuthenticator validates the encoded hash. An empty hash disables admin
// access entirely.
func NewAdminAuthenticator(encodedHash string) (*AdminAuthenticator, error) {
	encodedHash = strings.TrimSpace(encodedHash)
	if encodedHash != "" {
		if _, _, _, err := decodeTokenHash(encodedHash); err != nil {
			return nil, err
		}
	}
	return &AdminAuthenticator{hash: encodedHash}, nil
}

// Enabled reports whether a hash is configured.
func (a *AdminAuthenticator) Enabled() bool {
	return a != nil && a.hash != ""
}

// Verify returns ErrUnauthorized unless token matches the configured hash.
func (a *AdminAuthenticator) Verify(token string) error {
	if !a.Enabled() || token == "" {
		return ErrUnauthorized
	}
	params, salt, expected, err := decodeTokenHash(a.hash)
	if err != nil {
		return err
	}
	actual := argon2.IDKey([]byte(token), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	if subtle.ConstantTimeCompare(expected, actual) == 1 {
		return nil
	}
	return ErrUnauthorized
}

func decodeTokenHash(encoded string) (Argon2idParams, []byte, []byte, error) {
	var params Argon2idParams
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return params, nil, nil, ErrInvalidTokenHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, fmt.Errorf("%w: %v", ErrInvalidTokenHash, err)
	}
	if version != argon2.Version {
		return params, nil, nil, ErrIncompatibleTokenVersion
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return params, nil, nil, fmt.Errorf("%w: %v", ErrInvalidTokenHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, fmt.Errorf("%w: %v", ErrInvalidTokenHash, err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return params, nil, nil, fmt.Errorf("%w: %v", ErrInvalidTokenHash, err)
	}
	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(hash))
	return params, salt, hash, nil
}
