package history

import (
	"net/url"
	"testing"

	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterFromQuery(t *testing.T) {
	f, err := FilterFromQuery(url.Values{
		"netuid": {"18"},
		"hotkey": {"ACCT_A"},
		"kind":   {"stake"},
		"limit":  {"5000"},
		"offset": {"10"},
	})
	require.NoError(t, err)
	require.NotNil(t, f.TopicID)
	assert.Equal(t, 18, *f.TopicID)
	assert.Equal(t, "ACCT_A", f.AccountKey)
	assert.Equal(t, domain.TradeKindStake, f.Kind)
	assert.Equal(t, domain.MaxHistoryLimit, f.Limit)
	assert.Equal(t, 10, f.Offset)
}

func TestFilterFromQuery_Defaults(t *testing.T) {
	f, err := FilterFromQuery(url.Values{})
	require.NoError(t, err)
	assert.Nil(t, f.TopicID)
	assert.Equal(t, domain.DefaultHistoryLimit, f.Limit)
	assert.Equal(t, 0, f.Offset)
}

func TestFilterFromQuery_Invalid(t *testing.T) {
	for _, q := range []url.Values{
		{"netuid": {"abc"}},
		{"netuid": {"-1"}},
		{"kind": {"transfer"}},
		{"limit": {"x"}},
		{"offset": {"-3"}},
	} {
		_, err := FilterFromQuery(q)
		assert.Error(t, err, "query %v", q)
	}
}
