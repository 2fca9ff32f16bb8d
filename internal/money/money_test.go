package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"grantflow/grant-portal-backend/pkg/apperrors"
)

func TestParse(t *testing.T) {
	d, err := Parse("123.4567")
	assert.NoError(t, err)
	assert.Equal(t, "123.4567", d.String())

	_, err = Parse("not-a-number")
	assert.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = Parse("-5")
	assert.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	d, err = Parse("0")
	assert.NoError(t, err)
	assert.True(t, d.IsZero())
}

func TestQuantizeTruncatesTowardZero(t *testing.T) {
	d := decimal.RequireFromString("1.9999")
	assert.Equal(t, "1.999", Quantize(d).String())

	// Never round up.
	d = decimal.RequireFromString("0.0009999")
	assert.Equal(t, "0", Quantize(d).String())
}

func TestFunded(t *testing.T) {
	target := decimal.NewFromInt(100)
	contributed := decimal.NewFromInt(80)
	matching := decimal.RequireFromString("0.5")
	bounty := decimal.NewFromInt(10)

	// 80 * 1.5 + 10 = 130, clamped to target.
	assert.Equal(t, "100", Funded(target, contributed, matching, bounty).String())

	// Unclamped path.
	contributed = decimal.NewFromInt(20)
	assert.Equal(t, "40", Funded(target, contributed, matching, bounty).String())

	// No matching, no bounty.
	assert.Equal(t, "20", Funded(target, contributed, decimal.Zero, decimal.Zero).String())
}

func TestValidateContribution(t *testing.T) {
	assert.NoError(t, ValidateContribution(decimal.RequireFromString("0.0001")))
	assert.NoError(t, ValidateContribution(decimal.NewFromInt(1000000)))
	assert.Error(t, ValidateContribution(decimal.RequireFromString("0.00009")))
	assert.Error(t, ValidateContribution(decimal.NewFromInt(1000001)))
}

func TestIsWholeNumber(t *testing.T) {
	assert.True(t, IsWholeNumber(decimal.NewFromInt(42)))
	assert.True(t, IsWholeNumber(decimal.RequireFromString("42.000")))
	assert.False(t, IsWholeNumber(decimal.RequireFromString("42.5")))
}
