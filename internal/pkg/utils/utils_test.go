package utils

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBigInt(t *testing.T) {
	tests := []struct {
		name     string
		amount   *big.Int
		decimals uint8
		want     string
	}{
		{"nil", nil, 18, "0"},
		{"zero", big.NewInt(0), 18, "0"},
		{"no decimals", big.NewInt(42), 0, "42"},
		{"fraction", big.NewInt(1_234_500_000_000_000_000), 18, "1.2345"},
		{"below one", big.NewInt(5), 1, "0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatBigInt(tt.amount, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatWei(t *testing.T) {
	assert.Equal(t, "2.5 ETH", FormatWei(big.NewInt(2_500_000_000_000_000_000)))
}

func TestUnixToTime(t *testing.T) {
	assert.True(t, UnixToTime(0).IsZero())
	assert.Equal(t, time.Date(2017, 7, 14, 2, 40, 0, 0, time.UTC), UnixToTime(1500000000))
}

func TestGetEnv(t *testing.T) {
	t.Setenv("SIFT_TEST_ENV", "custom.yml")
	assert.Equal(t, "custom.yml", GetEnv("SIFT_TEST_ENV", "config/config.yml"))

	t.Setenv("SIFT_TEST_ENV", "")
	assert.Equal(t, "config/config.yml", GetEnv("SIFT_TEST_ENV", "config/config.yml"))
}
