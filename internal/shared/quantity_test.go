package shared

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidQuantity(t *testing.T) {
	for _, q := range []float64{0.001, 0.5, 2.125, 12.3, 250, 99999999999.999} {
		require.True(t, ValidQuantity(q), "%v", q)
	}
	for _, q := range []float64{0, -1, 0.0004, 0.0006, 1.2345, 1e11, math.NaN(), math.Inf(1)} {
		require.False(t, ValidQuantity(q), "%v", q)
	}
}

func TestFitsQuantityScaleAllowsZero(t *testing.T) {
	require.True(t, FitsQuantityScale(0))
	require.False(t, FitsQuantityScale(0.25005))
}
