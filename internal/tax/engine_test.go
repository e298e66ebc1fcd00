package tax

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForSupplyIntraState(t *testing.T) {
	split := ForSupply("MH", "MH", 1000, 12)
	require.InDelta(t, 60.0, split.Central, 0.001)
	require.InDelta(t, 60.0, split.State, 0.001)
	require.Zero(t, split.Integrated)
	require.InDelta(t, 120.0, split.Total(), 0.001)
	require.False(t, split.Interstate())
}

func TestForSupplyInterState(t *testing.T) {
	split := ForSupply("MH", "KA", 1000, 12)
	require.Zero(t, split.Central)
	require.Zero(t, split.State)
	require.InDelta(t, 120.0, split.Integrated, 0.001)
	require.True(t, split.Interstate())
}

func TestForSupplyUnknownBuyerDefaultsToIntra(t *testing.T) {
	split := ForSupply("MH", "", 500, 18)
	require.InDelta(t, 45.0, split.Central, 0.001)
	require.InDelta(t, 45.0, split.State, 0.001)
	require.Zero(t, split.Integrated)
}

func TestForSupplyOddPaisaGoesToCentral(t *testing.T) {
	// 333 * 5% = 16.65, halves to 8.33 + 8.32; the extra paisa must be
	// attributed consistently and the pair must always sum to the full levy.
	split := ForSupply("GJ", "GJ", 333, 5)
	require.InDelta(t, 16.65, split.Central+split.State, 0.001)
	require.GreaterOrEqual(t, split.Central, split.State)

	split = ForSupply("GJ", "GJ", 100.30, 5)
	full := Round2(100.30 * 5 / 100)
	require.InDelta(t, full, split.Central+split.State, 0.001)
}

func TestForSupplyZeroAmountAndRate(t *testing.T) {
	require.Equal(t, Split{}, ForSupply("MH", "MH", 0, 12))
	require.Equal(t, Split{}, ForSupply("MH", "KA", 1000, 0))
}

func TestRound2HalfUp(t *testing.T) {
	require.InDelta(t, 1.13, Round2(1.125), 0.0001)
	require.InDelta(t, 1.12, Round2(1.124), 0.0001)
	require.InDelta(t, 0.01, Round2(0.005), 0.0001)
}

func TestRoundInvoice(t *testing.T) {
	total, roundOff := RoundInvoice(1234.49)
	require.InDelta(t, 1234.0, total, 0.0001)
	require.InDelta(t, -0.49, roundOff, 0.0001)

	total, roundOff = RoundInvoice(1234.50)
	require.InDelta(t, 1235.0, total, 0.0001)
	require.InDelta(t, 0.50, roundOff, 0.0001)

	total, roundOff = RoundInvoice(1200.00)
	require.InDelta(t, 1200.0, total, 0.0001)
	require.Zero(t, roundOff)
}
