package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	minPassBytes          = 8
	algorithmID           = "argon2id"
)

// dummyPassword seeds the fixed hash that DummyVerify compares against.
// Its value is irrelevant; the probe below never equals it.
const (
	dummyPassword = "authkit.dummy.password.0000"
	dummyProbe    = "authkit.dummy.probe.1111"
)

// ErrCredentialFormat is returned when a stored credential is not a valid
// PHC string for a supported algorithm. It indicates corrupt or foreign
// data and must be surfaced, not treated as a failed match.
var ErrCredentialFormat = errors.New("password: invalid stored credential format")

// Config holds Argon2id cost parameters. Memory is in KB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns moderate interactive-login parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher salts and hashes passwords. It is immutable after construction
// and safe for concurrent use.
type Hasher struct {
	config Config
	dummy  string
}

type parsedCredential struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	digest      []byte
}

// NewHasher validates cfg and returns a ready Hasher. Construction pays
// one extra hash to precompute the DummyVerify target.
func NewHasher(cfg Config) (*Hasher, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	h := &Hasher{config: cfg}
	dummy, err := h.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}
	h.dummy = dummy

	return h, nil
}

// Hash generates a random salt and returns the PHC-encoded credential.
// Password bytes are used exactly as provided (no Unicode normalization).
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) < minPassBytes {
		return "", fmt.Errorf("password: must be at least %d bytes", minPassBytes)
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	digest := argon2.IDKey(
		[]byte(password),
		salt,
		h.config.Time,
		h.config.Memory,
		h.config.Parallelism,
		h.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(digest),
	), nil
}

// Verify re-derives the digest with the stored salt and parameters and
// compares it to the stored digest in constant time. A malformed stored
// value returns ErrCredentialFormat.
func (h *Hasher) Verify(password string, storedCredential string) (bool, error) {
	parsed, err := parseCredential(storedCredential)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		uint32(len(parsed.digest)),
	)

	return subtle.ConstantTimeCompare(computed, parsed.digest) == 1, nil
}

// DummyVerify runs one full hash-and-compare cycle against a fixed bogus
// credential and always returns false. Call it when an identifier lookup
// finds no account, so missing and existing accounts cost the same.
func (h *Hasher) DummyVerify() bool {
	match, err := h.Verify(dummyProbe, h.dummy)
	if err != nil {
		return false
	}
	// The probe never equals the dummy password, so match is always false.
	return match && false
}

// NeedsUpgrade reports whether the stored credential was produced with
// weaker parameters than the current configuration.
func (h *Hasher) NeedsUpgrade(storedCredential string) (bool, error) {
	parsed, err := parseCredential(storedCredential)
	if err != nil {
		return false, err
	}

	switch {
	case h.config.Memory > parsed.memory:
		return true, nil
	case h.config.Time > parsed.time:
		return true, nil
	case h.config.Parallelism > parsed.parallelism:
		return true, nil
	case h.config.KeyLength != uint32(len(parsed.digest)):
		return true, nil
	}

	return false, nil
}

func parseCredential(stored string) (*parsedCredential, error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrCredentialFormat
	}
	if parts[1] != algorithmID {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrCredentialFormat, parts[1])
	}

	if !strings.HasPrefix(parts[2], "v=") {
		return nil, ErrCredentialFormat
	}
	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported argon2 version", ErrCredentialFormat)
	}

	parsed := &parsedCredential{}
	if err := parseParams(parts[3], parsed); err != nil {
		return nil, err
	}

	parsed.salt, err = base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(parsed.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: bad salt", ErrCredentialFormat)
	}

	parsed.digest, err = base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(parsed.digest) == 0 {
		return nil, fmt.Errorf("%w: bad digest", ErrCredentialFormat)
	}

	return parsed, nil
}

func parseParams(part string, out *parsedCredential) error {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return ErrCredentialFormat
	}

	var haveM, haveT, haveP bool
	for _, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return ErrCredentialFormat
		}

		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return fmt.Errorf("%w: bad memory parameter", ErrCredentialFormat)
			}
			out.memory = uint32(v)
			haveM = true
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return fmt.Errorf("%w: bad time parameter", ErrCredentialFormat)
			}
			out.time = uint32(v)
			haveT = true
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return fmt.Errorf("%w: bad parallelism parameter", ErrCredentialFormat)
			}
			out.parallelism = uint8(v)
			haveP = true
		default:
			return fmt.Errorf("%w: unknown parameter %q", ErrCredentialFormat, kv[0])
		}
	}

	if !haveM || !haveT || !haveP {
		return fmt.Errorf("%w: missing parameters", ErrCredentialFormat)
	}
	return nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password: memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password: time cost must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password: parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password: salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password: key length must be >= 16")
	}
	return nil
}
