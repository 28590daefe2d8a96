package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCentsFromAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   int64
	}{
		{"whole", 12, 1200},
		{"rounds", 19.99, 1999},
		{"negative", -1.5, -150},
		{"too large", 1e300, math.MaxInt64},
		{"too small", -1e300, math.MinInt64},
		{"infinity", math.Inf(1), math.MaxInt64},
		{"nan", math.NaN(), math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CentsFromAmount(tt.amount))
		})
	}
}

func TestAmountFromCents(t *testing.T) {
	assert.Equal(t, 25.0, AmountFromCents(2500))
	assert.Equal(t, 0.01, AmountFromCents(1))
}
