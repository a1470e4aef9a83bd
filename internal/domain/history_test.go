package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryKind_NamesRoundTrip(t *testing.T) {
	for k := KindPaySent; k <= KindVoteReward; k++ {
		parsed, err := ParseHistoryKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}

func TestHistoryKind_ParseRejectsUnknown(t *testing.T) {
	_, err := ParseHistoryKind("unknown")
	assert.True(t, errors.Is(err, ErrInvalidKind))

	_, err = ParseHistoryKind("gift")
	assert.True(t, errors.Is(err, ErrInvalidKind))
}

func TestHistoryEntry_JSONUsesKindName(t *testing.T) {
	b, err := json.Marshal(HistoryEntry{Kind: KindPaySent, Amount: 5, Counterparty: "p2"})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"pay_sent"`)
	assert.NotContains(t, string(b), "AccountID")

	var back HistoryEntry
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, KindPaySent, back.Kind)
	assert.Equal(t, "p2", back.Counterparty)
}

func TestHistoryKind_Scan(t *testing.T) {
	var k HistoryKind
	require.NoError(t, k.Scan([]byte("withdraw")))
	assert.Equal(t, KindWithdraw, k)
	require.NoError(t, k.Scan("deposit"))
	assert.Equal(t, KindDeposit, k)
	assert.Error(t, k.Scan(42))

	v, err := KindAdminAdd.Value()
	require.NoError(t, err)
	assert.Equal(t, "admin_add", v)

	_, err = KindUnknown.Value()
	assert.Error(t, err)
}

func TestFundsError_MatchesSentinel(t *testing.T) {
	err := error(&FundsError{AccountID: "p1", Balance: 250, Required: 300})
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.Equal(t, "insufficient funds: balance 250, required 300", err.Error())
}
