package credit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckWithinLimit(t *testing.T) {
	p := Profile{CustomerID: 7, Terms: TermsCredit, CreditLimit: 10000, Outstanding: 4000}
	require.NoError(t, Check(p, 6000))
}

func TestCheckExceedsLimit(t *testing.T) {
	p := Profile{CustomerID: 7, Terms: TermsCredit, CreditLimit: 10000, Outstanding: 4000}
	err := Check(p, 6001)
	require.Error(t, err)

	var limitErr *LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	require.Equal(t, int64(7), limitErr.CustomerID)
	require.InDelta(t, 10000.0, limitErr.Limit, 0.001)
	require.InDelta(t, 4000.0, limitErr.Outstanding, 0.001)
	require.InDelta(t, 6001.0, limitErr.Requested, 0.001)
}

func TestCheckCashTermsBypassLimit(t *testing.T) {
	p := Profile{CustomerID: 3, Terms: TermsCash, CreditLimit: 0, Outstanding: 99999}
	require.NoError(t, Check(p, 50000))
}

func TestCheckZeroLimitMeansCashOnly(t *testing.T) {
	p := Profile{CustomerID: 9, Terms: TermsCredit, CreditLimit: 0, Outstanding: 0}
	require.Error(t, Check(p, 1))
	require.NoError(t, Check(p, 0))
}
