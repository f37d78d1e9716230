package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateCurrencyCode(t *testing.T) {
	assert.NoError(t, ValidateCurrencyCode(""))
	assert.NoError(t, ValidateCurrencyCode("BRL"))
	assert.NoError(t, ValidateCurrencyCode("USD"))
	assert.Error(t, ValidateCurrencyCode("brl"))
	assert.Error(t, ValidateCurrencyCode("REAL"))
	assert.Error(t, ValidateCurrencyCode("R$"))
}

func TestValidateDate(t *testing.T) {
	assert.NoError(t, ValidateDate("2024-02-29", "Date"))
	assert.Error(t, ValidateDate("2023-02-29", "Date"))
	assert.Error(t, ValidateDate("29/02/2024", "Date"))
	assert.Error(t, ValidateDate("2024-2-9", "Date"))
	assert.Error(t, ValidateDate("", "Date"))
}

func TestValidatePositiveAmount(t *testing.T) {
	assert.NoError(t, ValidatePositiveAmount(decimal.RequireFromString("0.01"), "Amount"))
	assert.Error(t, ValidatePositiveAmount(decimal.Zero, "Amount"))
	assert.Error(t, ValidatePositiveAmount(decimal.RequireFromString("-10"), "Amount"))
}

func TestValidateIPAddress(t *testing.T) {
	assert.NoError(t, ValidateIPAddress("192.168.1.1"))
	assert.NoError(t, ValidateIPAddress("2001:db8::1"))
	assert.NoError(t, ValidateIPAddress(" 10.0.0.1 "))
	assert.Error(t, ValidateIPAddress("999.1.1.1"))
	assert.Error(t, ValidateIPAddress("example.com"))
	assert.Error(t, ValidateIPAddress(""))
}

func TestValidateStringMaxLength(t *testing.T) {
	assert.NoError(t, ValidateStringMaxLength("olá", 3, "Field"))
	assert.Error(t, ValidateStringMaxLength("olá!", 3, "Field"))
}

func TestSanitizeTextStripsHTML(t *testing.T) {
	assert.Equal(t, "Mercado", SanitizeText("<script>alert(1)</script>Mercado"))
	assert.Equal(t, "texto limpo", SanitizeText("texto limpo"))
}
