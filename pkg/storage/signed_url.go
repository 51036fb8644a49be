package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignedURLSigner mints and verifies HMAC tokens for export downloads. A
// token embeds the file ID, an expiry timestamp and the relative path, so
// serving a download needs no database lookup.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner builds a signer. A non-positive ttl falls back to 24h.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl}
}

// Generate signs a download token for the file. The token carries four
// dot-separated fields: file ID, unix expiry, base64 path and signature,
// so the file ID must not contain a dot.
func (s *SignedURLSigner) Generate(fileID, relPath string) (string, time.Time, error) {
	switch {
	case fileID == "" || relPath == "":
		return "", time.Time{}, fmt.Errorf("fileID and relPath required")
	case strings.Contains(fileID, "."):
		return "", time.Time{}, fmt.Errorf("fileID must not contain a dot")
	case len(s.secret) == 0:
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}

	expiresAt := time.Now().UTC().Add(s.ttl)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	signature := s.sign(fileID, ts, encodedPath)

	return strings.Join([]string{fileID, ts, encodedPath, signature}, "."), expiresAt, nil
}

// Parse verifies a token and returns the embedded metadata. The signature is
// checked before anything else is decoded. With allowExpired the expiry check
// is skipped, which cleanup routines rely on.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (fileID, relPath string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("invalid token format")
	}
	fileID, ts, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(fileID, ts, encodedPath)), []byte(signature)) {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}

	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode path: %w", err)
	}

	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("invalid timestamp")
	}
	expiresAt = time.Unix(expUnix, 0)
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}

	return fileID, string(rawPath), expiresAt, nil
}

func (s *SignedURLSigner) sign(fileID, ts, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s", fileID, ts, encodedPath)
	return hex.EncodeToString(mac.Sum(nil))
}
