package money

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRawUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency Currency
		want     string
		wantErr  bool
	}{
		{
			name:     "five dollars USDC",
			amount:   "5.00",
			currency: USDC,
			want:     "5000000",
		},
		{
			name:     "fractional USDC",
			amount:   "0.000001",
			currency: USDC,
			want:     "1",
		},
		{
			name:     "one ether",
			amount:   "1",
			currency: ETH,
			want:     "1000000000000000000",
		},
		{
			name:     "eighteen decimal places",
			amount:   "0.000000000000000001",
			currency: ETH,
			want:     "1",
		},
		{
			name:     "sub-unit remainder truncated",
			amount:   "1.0000005",
			currency: USDC,
			want:     "1000000",
		},
		{
			name:     "zero",
			amount:   "0",
			currency: USDC,
			want:     "0",
		},
		{
			name:     "negative rejected",
			amount:   "-1",
			currency: USDC,
			wantErr:  true,
		},
		{
			name:     "not a number",
			amount:   "abc",
			currency: USDC,
			wantErr:  true,
		},
		{
			name:     "empty string",
			amount:   "",
			currency: ETH,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ToRawUnits(tt.amount, tt.currency)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, raw.String())
		})
	}
}

func TestToHumanAmount(t *testing.T) {
	human, err := ToHumanAmount(big.NewInt(5000000), USDC)
	require.NoError(t, err)
	assert.Equal(t, "5", human)

	human, err = ToHumanAmount(big.NewInt(5250000), USDC)
	require.NoError(t, err)
	assert.Equal(t, "5.25", human)

	wei, ok := new(big.Int).SetString("1500000000000000000", 10)
	require.True(t, ok)
	human, err = ToHumanAmount(wei, ETH)
	require.NoError(t, err)
	assert.Equal(t, "1.5", human)

	_, err = ToHumanAmount(nil, USDC)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ToHumanAmount(big.NewInt(-1), USDC)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

// Round-tripping any amount within the currency's precision must be exact,
// with no floating-point drift.
func TestRoundTrip(t *testing.T) {
	cases := []struct {
		amount   string
		currency Currency
	}{
		{"5.00", USDC},
		{"0.000001", USDC},
		{"123456.789012", USDC},
		{"0.1", USDC},
		{"1", ETH},
		{"0.000000000000000001", ETH},
		{"1234.567890123456789012", ETH},
		{"0.3", ETH},
	}

	for _, tc := range cases {
		t.Run(tc.currency.Symbol+"/"+tc.amount, func(t *testing.T) {
			raw, err := ToRawUnits(tc.amount, tc.currency)
			require.NoError(t, err)

			human, err := ToHumanAmount(raw, tc.currency)
			require.NoError(t, err)

			want := decimal.RequireFromString(tc.amount)
			got := decimal.RequireFromString(human)
			assert.True(t, want.Equal(got), "round trip drift: %s -> %s -> %s", tc.amount, raw, human)
		})
	}
}

func TestCurrencyFromSymbol(t *testing.T) {
	c, err := CurrencyFromSymbol("USDC")
	require.NoError(t, err)
	assert.Equal(t, int32(6), c.Decimals)
	assert.False(t, c.Native)

	c, err = CurrencyFromSymbol("ETH")
	require.NoError(t, err)
	assert.Equal(t, int32(18), c.Decimals)
	assert.True(t, c.Native)

	_, err = CurrencyFromSymbol("DOGE")
	assert.Error(t, err)
}
