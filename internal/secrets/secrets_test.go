package secrets

import (
	"strings"
	"testing"
	"time"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := NewCipher("test-secret")
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}
	if !c.Enabled() {
		t.Fatal("cipher with a secret should be enabled")
	}

	enc := c.EncryptField("+12065551234")
	if !IsEncrypted(enc) {
		t.Fatalf("encrypted value missing enc: prefix: %q", enc)
	}
	if strings.Contains(enc, "2065551234") {
		t.Error("ciphertext leaks the plain value")
	}
	if got := c.DecryptField(enc); got != "+12065551234" {
		t.Errorf("round trip = %q, want original value", got)
	}
}

func TestDecryptToleratesPlainText(t *testing.T) {
	c, _ := NewCipher("test-secret")
	if got := c.DecryptField("+12065551234"); got != "+12065551234" {
		t.Errorf("plain value changed on decrypt: %q", got)
	}
	// Malformed ciphertext comes back unchanged rather than erroring.
	if got := c.DecryptField("enc:not-valid-base64!!!"); got != "enc:not-valid-base64!!!" {
		t.Errorf("malformed ciphertext = %q, want raw value", got)
	}
}

func TestPassthroughMode(t *testing.T) {
	c, err := NewCipher("")
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}
	if c.Enabled() {
		t.Fatal("cipher without a secret should be passthrough")
	}
	if got := c.EncryptField("+12065551234"); got != "+12065551234" {
		t.Errorf("passthrough encrypt = %q, want unchanged", got)
	}
	if got := c.DecryptField("enc:abc"); got != "enc:abc" {
		t.Errorf("passthrough decrypt = %q, want raw value", got)
	}
}

func TestEncryptEmptyValue(t *testing.T) {
	c, _ := NewCipher("test-secret")
	if got := c.EncryptField(""); got != "" {
		t.Errorf("empty value encrypt = %q, want empty", got)
	}
}

func TestWrongKeyReturnsRaw(t *testing.T) {
	c1, _ := NewCipher("key-one")
	c2, _ := NewCipher("key-two")
	enc := c1.EncryptField("secret data")
	if got := c2.DecryptField(enc); got != enc {
		t.Errorf("wrong key decrypt = %q, want raw ciphertext back", got)
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	auth := NewAdminAuth("admin-secret", time.Hour)
	token := auth.GenerateToken()

	ok, reason := auth.VerifyToken(token)
	if !ok {
		t.Fatalf("fresh token rejected: %s", reason)
	}

	if ok, reason = auth.VerifyToken(""); ok || reason != "No token provided" {
		t.Errorf("empty token: ok=%v reason=%q", ok, reason)
	}
	if ok, reason = auth.VerifyToken("garbage"); ok || reason != "Invalid token format" {
		t.Errorf("malformed token: ok=%v reason=%q", ok, reason)
	}
	if ok, reason = auth.VerifyToken("abc.def"); ok || reason != "Invalid token format" {
		t.Errorf("non-numeric expiry: ok=%v reason=%q", ok, reason)
	}
}

func TestAdminTokenExpiry(t *testing.T) {
	auth := NewAdminAuth("admin-secret", time.Hour)
	token := auth.GenerateToken()

	future := time.Now().Add(2 * time.Hour)
	if ok, reason := auth.verifyAt(token, future); ok || reason != "Token expired" {
		t.Errorf("expired token: ok=%v reason=%q", ok, reason)
	}
}

func TestAdminTokenTamperedSignature(t *testing.T) {
	auth := NewAdminAuth("admin-secret", time.Hour)
	token := auth.GenerateToken()

	expiry, _, _ := strings.Cut(token, ".")
	tampered := expiry + "." + strings.Repeat("0", 64)
	if ok, reason := auth.VerifyToken(tampered); ok || reason != "Invalid token signature" {
		t.Errorf("tampered token: ok=%v reason=%q", ok, reason)
	}

	// A token signed with a different secret must fail too.
	other := NewAdminAuth("other-secret", time.Hour)
	if ok, _ := auth.VerifyToken(other.GenerateToken()); ok {
		t.Error("token from a different secret accepted")
	}
}
