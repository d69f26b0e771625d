package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("0.01")))
	assert.NoError(t, ValidateAmount(decimal.NewFromInt(1500)))
	assert.Error(t, ValidateAmount(decimal.Zero))
	assert.Error(t, ValidateAmount(decimal.NewFromInt(-5)))
	assert.Error(t, ValidateAmount(MaxEntryAmount.Add(decimal.NewFromInt(1))))
}

func TestValidateDate(t *testing.T) {
	assert.NoError(t, ValidateDate("2025-01-31"))
	assert.Error(t, ValidateDate("31-01-2025"))
	assert.Error(t, ValidateDate("2025-02-30"))
	assert.Error(t, ValidateDate(""))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Acme Ltd", SanitizeString("  Acme\x00 Ltd\n"))
	assert.Equal(t, "E001", NormalizeCode(" E001 "))
}
