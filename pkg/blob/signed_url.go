package blob

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidLink is returned for tampered, malformed or expired link tokens.
var ErrInvalidLink = errors.New("invalid download link")

// LinkSigner creates and validates HMAC signed download tokens.
type LinkSigner struct {
	secret []byte
	now    func() time.Time
}

// NewLinkSigner constructs a signer with the provided secret.
func NewLinkSigner(secret string) *LinkSigner {
	return &LinkSigner{secret: []byte(secret), now: time.Now}
}

// Generate returns a token granting access to key for ttl.
func (s *LinkSigner) Generate(key string, ttl time.Duration) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, fmt.Errorf("key required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	expiresAt := s.now().Add(ttl)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedKey := base64.RawURLEncoding.EncodeToString([]byte(key))
	token := strings.Join([]string{ts, encodedKey, s.sign(ts, encodedKey)}, ".")
	return token, expiresAt, nil
}

// Parse validates token and returns the key it grants.
func (s *LinkSigner) Parse(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: format", ErrInvalidLink)
	}
	ts, encodedKey, signature := parts[0], parts[1], parts[2]
	if !hmac.Equal([]byte(s.sign(ts, encodedKey)), []byte(signature)) {
		return "", fmt.Errorf("%w: signature", ErrInvalidLink)
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: timestamp", ErrInvalidLink)
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return "", fmt.Errorf("%w: expired", ErrInvalidLink)
	}
	raw, err := base64.RawURLEncoding.DecodeString(encodedKey)
	if err != nil {
		return "", fmt.Errorf("%w: key", ErrInvalidLink)
	}
	return string(raw), nil
}

func (s *LinkSigner) sign(ts, encodedKey string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(ts + "|" + encodedKey))
	return hex.EncodeToString(mac.Sum(nil))
}
