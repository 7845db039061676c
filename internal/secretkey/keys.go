package secretkey

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// deriveTempKey builds the 128-hex-char key value from the user identity,
// a millisecond timestamp, a nonce and the caller's user agent.
func deriveTempKey(userID int64, username string, millis int64, nonce, userAgent string) string {
	raw := fmt.Sprintf("%d|%s|%d|%s|%s", userID, username, millis, nonce, userAgent)
	sum := sha512.Sum512([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// deriveWsKey builds the shorter 64-hex-char session key for a websocket
// connection, bound to the user and conversation.
func deriveWsKey(userID, conversationID, millis int64, nonce string) string {
	raw := fmt.Sprintf("ws|%d|%d|%d|%s", userID, conversationID, millis, nonce)
	sum := sha512.Sum512([]byte(raw))
	return hex.EncodeToString(sum[:32])
}

// hashKey is the lookup column value: the full SHA-512 of the key value.
func hashKey(keyValue string) string {
	sum := sha512.Sum512([]byte(keyValue))
	return hex.EncodeToString(sum[:])
}

func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ObfuscateKey renders a hex key as enclosed-alphanumeric glyphs for
// display, so a double-click copies garbage instead of the key.
func ObfuscateKey(keyValue string) string {
	var b strings.Builder
	b.Grow(len(keyValue) * 3)
	for _, c := range keyValue {
		switch {
		case c >= '0' && c <= '9':
			b.WriteRune(0x2460 + (c - '0'))
		case c >= 'a' && c <= 'f':
			b.WriteRune(0x24B6 + (c - 'a'))
		default:
			b.WriteRune('�')
		}
	}
	return b.String()
}
