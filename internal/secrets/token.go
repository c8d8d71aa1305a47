package secrets

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// DefaultTokenTTL is the admin token validity period when none is
// configured.
const DefaultTokenTTL = 24 * time.Hour

// AdminAuth issues and verifies time-limited admin API tokens. A token is
// "<expiry-unix>.<hex hmac-sha256 of the expiry>", which keeps verification
// stateless.
type AdminAuth struct {
	secret []byte
	ttl    time.Duration
}

// NewAdminAuth builds an AdminAuth from a dedicated admin secret. When the
// secret is empty a random one is generated, so tokens stop working across
// restarts.
func NewAdminAuth(secret string, ttl time.Duration) *AdminAuth {
	if secret == "" {
		generated, err := GenerateKey()
		if err == nil {
			secret = generated
		}
		slog.Warn("AdminAuth.New: ADMIN_SECRET not set, using auto-generated key; admin tokens will not persist across restarts")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &AdminAuth{secret: []byte(secret), ttl: ttl}
}

// GenerateToken issues a token valid for the configured TTL.
func (a *AdminAuth) GenerateToken() string {
	return a.GenerateTokenWithTTL(a.ttl)
}

// GenerateTokenWithTTL issues a token valid for the given duration.
func (a *AdminAuth) GenerateTokenWithTTL(ttl time.Duration) string {
	expiry := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("%d.%s", expiry, a.sign(expiry))
}

// VerifyToken checks a token's format, expiry, and signature. The reason is
// empty when the token is valid.
func (a *AdminAuth) VerifyToken(token string) (bool, string) {
	return a.verifyAt(token, time.Now())
}

func (a *AdminAuth) verifyAt(token string, now time.Time) (bool, string) {
	if token == "" {
		return false, "No token provided"
	}
	expiryStr, sig, ok := strings.Cut(token, ".")
	if !ok {
		return false, "Invalid token format"
	}
	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return false, "Invalid token format"
	}
	if now.Unix() > expiry {
		return false, "Token expired"
	}
	if !hmac.Equal([]byte(sig), []byte(a.sign(expiry))) {
		return false, "Invalid token signature"
	}
	return true, ""
}

func (a *AdminAuth) sign(expiry int64) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(strconv.FormatInt(expiry, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
