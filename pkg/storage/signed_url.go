package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Errors returned by SignedURLSigner.Verify.
var (
	ErrSignatureMissingSecret = errors.New("storage: signing secret missing")
	ErrSignatureMalformed     = errors.New("storage: malformed signed token")
	ErrSignatureMismatch      = errors.New("storage: signature mismatch")
	ErrSignatureExpired       = errors.New("storage: signed token expired")
)

// SignedPath is the content of a verified download token.
type SignedPath struct {
	Owner     string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner issues HMAC-SHA256 tokens that grant time-limited access to
// a stored file. Token layout: base64(owner).unix-expiry.base64(path).base64(mac).
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner returns a signer; ttl <= 0 means one day.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign binds owner to path until now+ttl.
func (s *SignedURLSigner) Sign(owner, path string) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrSignatureMissingSecret
	}
	if owner == "" || path == "" {
		return "", time.Time{}, ErrSignatureMalformed
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	body := strings.Join([]string{
		encodeSegment(owner),
		strconv.FormatInt(expiresAt.Unix(), 10),
		encodeSegment(path),
	}, ".")
	return body + "." + s.mac(body), expiresAt, nil
}

// Verify checks the signature and expiry of token.
func (s *SignedURLSigner) Verify(token string) (SignedPath, error) {
	if len(s.secret) == 0 {
		return SignedPath{}, ErrSignatureMissingSecret
	}
	cut := strings.LastIndexByte(token, '.')
	if cut <= 0 {
		return SignedPath{}, ErrSignatureMalformed
	}
	body, sig := token[:cut], token[cut+1:]
	if !hmac.Equal([]byte(s.mac(body)), []byte(sig)) {
		return SignedPath{}, ErrSignatureMismatch
	}

	fields := strings.Split(body, ".")
	if len(fields) != 3 {
		return SignedPath{}, ErrSignatureMalformed
	}
	owner, err := decodeSegment(fields[0])
	if err != nil {
		return SignedPath{}, ErrSignatureMalformed
	}
	unix, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return SignedPath{}, ErrSignatureMalformed
	}
	path, err := decodeSegment(fields[2])
	if err != nil {
		return SignedPath{}, ErrSignatureMalformed
	}

	signed := SignedPath{Owner: owner, Path: path, ExpiresAt: time.Unix(unix, 0)}
	if s.now().After(signed.ExpiresAt) {
		return signed, ErrSignatureExpired
	}
	return signed, nil
}

func (s *SignedURLSigner) mac(body string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func encodeSegment(v string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(v))
}

func decodeSegment(v string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(v)
	return string(raw), err
}
