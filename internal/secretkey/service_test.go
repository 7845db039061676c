package secretkey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"social-service/internal/domain"
	"social-service/internal/models"
)

func TestDeriveTempKeyLengthAndDeterminism(t *testing.T) {
	key := deriveTempKey(42, "alice", 1700000000000, "nonce", "agent/1.0")
	require.Len(t, key, 128)
	require.Equal(t, key, deriveTempKey(42, "alice", 1700000000000, "nonce", "agent/1.0"))
	require.NotEqual(t, key, deriveTempKey(42, "alice", 1700000000001, "nonce", "agent/1.0"))
}

func TestDeriveWsKeyLength(t *testing.T) {
	key := deriveWsKey(42, 7, 1700000000000, "nonce")
	require.Len(t, key, 64)
	require.NotEqual(t, key, deriveWsKey(42, 8, 1700000000000, "nonce"))
}

func TestHashKeyDiffersFromValue(t *testing.T) {
	key := deriveTempKey(1, "bob", 1, "n", "ua")
	hash := hashKey(key)
	require.Len(t, hash, 128)
	require.NotEqual(t, key, hash)
}

func TestObfuscateKey(t *testing.T) {
	out := ObfuscateKey("0af")
	require.Equal(t, "①ⒶⒻ", out)
	require.False(t, strings.ContainsAny(out, "0123456789abcdef"))

	require.Equal(t, "�", ObfuscateKey("z"))
}

func TestGenerateWsKeyIdempotent(t *testing.T) {
	svc := NewKeyService(nil)

	first := svc.GenerateWsKey(1, 10)
	second := svc.GenerateWsKey(1, 10)
	require.Equal(t, first, second)

	other := svc.GenerateWsKey(1, 11)
	require.NotEqual(t, first, other)
}

func TestValidateWsKeyRefreshesAndResolves(t *testing.T) {
	svc := NewKeyService(nil)
	key := svc.GenerateWsKey(5, 20)

	userID, conversationID, err := svc.ValidateWsKey(key)
	require.NoError(t, err)
	require.EqualValues(t, 5, userID)
	require.EqualValues(t, 20, conversationID)

	_, _, err = svc.ValidateWsKey("missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemoveWsKey(t *testing.T) {
	svc := NewKeyService(nil)
	key := svc.GenerateWsKey(5, 20)
	svc.RemoveWsKey(key)

	_, _, err := svc.ValidateWsKey(key)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Removal is idempotent.
	svc.RemoveWsKey(key)
}

func TestUserWsKeys(t *testing.T) {
	svc := NewKeyService(nil)
	a := svc.GenerateWsKey(1, 10)
	b := svc.GenerateWsKey(1, 11)
	svc.GenerateWsKey(2, 10)

	keys := svc.UserWsKeys(1)
	require.Len(t, keys, 2)
	require.Contains(t, keys, a)
	require.Contains(t, keys, b)
	require.Empty(t, svc.UserWsKeys(3))
}

func TestValidKeyType(t *testing.T) {
	require.NoError(t, validKeyType(models.TempKeyFileDownload))
	require.NoError(t, validKeyType(models.TempKeyDataExport))

	err := validKeyType("session")
	require.True(t, domain.IsValidation(err))
}
