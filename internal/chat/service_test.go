package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"social-service/internal/domain"
)

func TestValidateMessageContentLength(t *testing.T) {
	require.NoError(t, validateMessage(strings.Repeat("a", 5000), 0))

	err := validateMessage(strings.Repeat("a", 5001), 0)
	require.Error(t, err)
	require.True(t, domain.IsValidation(err))
}

func TestValidateMessageFileSize(t *testing.T) {
	require.NoError(t, validateMessage("hi", 10*1024*1024))

	err := validateMessage("hi", 10*1024*1024+1)
	require.Error(t, err)
	require.True(t, domain.IsValidation(err))
}

func TestValidateGroupParamsMemberBoundary(t *testing.T) {
	members := make([]int64, 499)
	for i := range members {
		members[i] = int64(i + 2)
	}
	// 499 members plus the owner is exactly 500.
	require.NoError(t, validateGroupParams("team", members))

	members = append(members, 501)
	err := validateGroupParams("team", members)
	require.Error(t, err)
	require.True(t, domain.IsValidation(err))
}

func TestValidateGroupParamsName(t *testing.T) {
	require.Error(t, validateGroupParams("", []int64{2}))
	require.Error(t, validateGroupParams("   ", []int64{2}))
	require.Error(t, validateGroupParams(strings.Repeat("n", 101), []int64{2}))
	require.NoError(t, validateGroupParams(strings.Repeat("n", 100), []int64{2}))
}

func TestDedupe(t *testing.T) {
	require.Equal(t, []int64{2, 3, 4}, dedupe([]int64{2, 3, 2, 4, 3}, 1))
	require.Equal(t, []int64{3}, dedupe([]int64{1, 3, 1}, 1))
	require.Empty(t, dedupe(nil, 1))
}

func TestPairLockKeyIsOrderStableAndDistinct(t *testing.T) {
	require.Equal(t, pairLockKey(3, 9), pairLockKey(3, 9))
	require.NotEqual(t, pairLockKey(3, 9), pairLockKey(3, 10))
	require.NotEqual(t, pairLockKey(3, 9), pairLockKey(4, 9))
}
