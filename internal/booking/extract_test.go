package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAffirmativeAndNegative(t *testing.T) {
	for _, s := range []string{"Yes", "yes please!", "Sure.", "ok", "Sounds good", "book it"} {
		assert.True(t, isAffirmative(normalizeText(s)), s)
		assert.False(t, isNegative(normalizeText(s)), s)
	}
	for _, s := range []string{"No", "nope", "no thanks", "Not that one", "a different time please"} {
		assert.True(t, isNegative(normalizeText(s)), s)
		assert.False(t, isAffirmative(normalizeText(s)), s)
	}
	assert.False(t, isNegative(normalizeText("next tuesday")))
	assert.False(t, isAffirmative(normalizeText("you know what")))
}

func TestExtractToothCount(t *testing.T) {
	tests := []struct {
		text   string
		asked  bool
		want   int
		wantOK bool
	}{
		{"3 teeth", false, 3, true},
		{"i have two cavities", false, 2, true},
		{"one filling please", false, 1, true},
		{"4", true, 4, true},
		{"4", false, 0, false},
		{"not sure", true, 0, false},
		{"40 teeth", false, 0, false},
	}
	for _, tt := range tests {
		got, ok := extractToothCount(tt.text, tt.asked)
		assert.Equal(t, tt.wantOK, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestExtractName(t *testing.T) {
	assert.Equal(t, "Ana Lopez", extractName("Hi, my name is Ana Lopez and I need a cleaning"))
	assert.Equal(t, "Sam", extractName("I'm Sam"))
	assert.Empty(t, extractName("I'm looking for a dentist"))
	assert.Empty(t, extractName("book a cleaning"))
}

func TestIsAnyPractitioner(t *testing.T) {
	assert.True(t, isAnyPractitioner("anyone is fine", false))
	assert.True(t, isAnyPractitioner("no preference", false))
	assert.True(t, isAnyPractitioner("any", true))
	assert.False(t, isAnyPractitioner("any time tomorrow", false))
}
