// Package signer implements the AliExpress open platform request signature.
//
// Parameters are sorted by key and concatenated as key+value with no
// delimiter. A value that itself looks like "key2value2" is not escaped, so
// distinct parameter sets can share a base string; the upstream protocol
// accepts that ambiguity.
package signer

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Mode selects one canonicalization variant for the lifetime of the process.
type Mode int

const (
	// ModeHMAC signs [path prefix] + key/value pairs with HMAC-SHA256.
	ModeHMAC Mode = iota + 1
	// ModeHMACSandwich signs key/value pairs + secret with HMAC-SHA256.
	ModeHMACSandwich
	// ModeMD5Sandwich signs secret + non-empty key/value pairs + secret with MD5.
	ModeMD5Sandwich
)

var ErrUnknownMode = errors.New("signer: unknown mode")

// ParseMode maps configuration values onto a Mode.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "hmac", "hmac-sha256", "sha256":
		return ModeHMAC, nil
	case "hmac-sandwich":
		return ModeHMACSandwich, nil
	case "md5", "md5-sandwich":
		return ModeMD5Sandwich, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, raw)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeHMAC:
		return "hmac"
	case ModeHMACSandwich:
		return "hmac-sandwich"
	case ModeMD5Sandwich:
		return "md5-sandwich"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// SignMethod is the sign_method value announced to the platform.
func (m Mode) SignMethod() string {
	if m == ModeMD5Sandwich {
		return "md5"
	}
	return "sha256"
}

// Signer produces signatures for one secret and one Mode.
type Signer struct {
	mode       Mode
	secret     string
	pathPrefix string
}

// Option customises a Signer.
type Option func(*Signer)

// WithPathPrefix prepends the API path to the base string. Only ModeHMAC uses it.
func WithPathPrefix(path string) Option {
	return func(s *Signer) {
		s.pathPrefix = path
	}
}

// New returns a Signer. The secret must be non-empty.
func New(mode Mode, secret string, opts ...Option) (*Signer, error) {
	switch mode {
	case ModeHMAC, ModeHMACSandwich, ModeMD5Sandwich:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}
	if secret == "" {
		return nil, errors.New("signer: secret is required")
	}
	s := &Signer{mode: mode, secret: secret}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mode reports the configured variant.
func (s *Signer) Mode() Mode {
	return s.mode
}

// BaseString returns the exact string that is hashed for params.
func (s *Signer) BaseString(params Params) string {
	var b strings.Builder
	switch s.mode {
	case ModeHMAC:
		b.WriteString(s.pathPrefix)
		writePairs(&b, params, false)
	case ModeHMACSandwich:
		writePairs(&b, params, false)
		b.WriteString(s.secret)
	case ModeMD5Sandwich:
		b.WriteString(s.secret)
		writePairs(&b, params, true)
		b.WriteString(s.secret)
	}
	return b.String()
}

// Sign returns the uppercase hexadecimal digest of params.
func (s *Signer) Sign(params Params) string {
	base := []byte(s.BaseString(params))

	var sum []byte
	if s.mode == ModeMD5Sandwich {
		digest := md5.Sum(base)
		sum = digest[:]
	} else {
		mac := hmac.New(sha256.New, []byte(s.secret))
		mac.Write(base)
		sum = mac.Sum(nil)
	}
	return strings.ToUpper(hex.EncodeToString(sum))
}

// SignInto computes the signature and stores it under SignKey.
func (s *Signer) SignInto(params Params) string {
	sign := s.Sign(params)
	params[SignKey] = sign
	return sign
}

func writePairs(b *strings.Builder, params Params, skipEmpty bool) {
	for _, key := range params.sortedKeys() {
		value := strings.TrimSpace(params[key])
		if skipEmpty && value == "" {
			continue
		}
		b.WriteString(key)
		b.WriteString(value)
	}
}
