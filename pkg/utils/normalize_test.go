package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "hemoglobin a1c", NormalizeName("  Hemoglobin   A1c "))
	assert.Equal(t, "bun", NormalizeName("BUN"))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "HBA1C", NormalizeCode("HbA1c"))
	assert.Equal(t, "WBC", NormalizeCode("W.B.C."))
	assert.Equal(t, "ALTGPT", NormalizeCode("ALT (GPT)"))
	assert.Equal(t, "", NormalizeCode("---"))
}
