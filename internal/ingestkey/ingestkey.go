// Package ingestkey hashes and checks the shared key meter integrations
// present when pushing readings.
package ingestkey

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

// Hash returns the encoded Argon2id hash of key.
func Hash(key string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	sum := argon2.IDKey([]byte(key), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory,
		argonTime,
		argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

type params struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	sum     []byte
}

func decode(encoded string) (params, bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return params{}, false
	}

	var p params
	for _, kv := range strings.Split(parts[3], ",") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return params{}, false
		}
		switch name {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				return params{}, false
			}
			p.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				return params{}, false
			}
			p.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil {
				return params{}, false
			}
			p.threads = uint8(v)
		default:
			return params{}, false
		}
	}
	if p.memory == 0 || p.time == 0 || p.threads == 0 {
		return params{}, false
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return params{}, false
	}
	if p.sum, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.sum) == 0 {
		return params{}, false
	}
	return p, true
}

// Verify reports whether key matches the encoded hash.
func Verify(key, encoded string) bool {
	p, ok := decode(encoded)
	if !ok {
		return false
	}
	check := argon2.IDKey([]byte(key), p.salt, p.time, p.memory, p.threads, uint32(len(p.sum)))
	return subtle.ConstantTimeCompare(p.sum, check) == 1
}

// Verifier checks presented keys against the configured hash. A zero
// Verifier rejects every key.
type Verifier struct {
	encoded string
}

func NewVerifier(encoded string) Verifier {
	return Verifier{encoded: strings.TrimSpace(encoded)}
}

func (v Verifier) Enabled() bool {
	return v.encoded != ""
}

func (v Verifier) Verify(key string) bool {
	if !v.Enabled() || key == "" {
		return false
	}
	return Verify(key, v.encoded)
}
