package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsedWineJSON_Price(t *testing.T) {
	w := NewParsedWine("raw")

	out, err := json.Marshal(w)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"price"`)

	w.Price = decimal.RequireFromString("95.50")
	out, err = json.Marshal(w)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"price":"95.5"`)
}

func TestMissingFields(t *testing.T) {
	w := NewParsedWine("")
	assert.Equal(t, StructuralFields, w.MissingFields())

	w = resolvedWine()
	assert.Empty(t, w.MissingFields())

	w.WineType = WineTypeUnknown
	w.GrapeVarieties = nil
	assert.Equal(t, []string{FieldWineType, FieldGrapes}, w.MissingFields())
}

func TestUnknownFields(t *testing.T) {
	assert.Empty(t, UnknownFields(nil))
	assert.Empty(t, UnknownFields([]string{FieldName, FieldGrapes}))
	assert.Equal(t, []string{"colour", "Name"}, UnknownFields([]string{"colour", FieldRegion, "Name"}))
}

func TestValidYear(t *testing.T) {
	assert.True(t, ValidYear(1900))
	assert.True(t, ValidYear(2018))
	assert.False(t, ValidYear(1899))
	assert.False(t, ValidYear(0))
	assert.False(t, ValidYear(9999))
}
