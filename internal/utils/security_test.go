package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateInputRejectsControlCharacters(t *testing.T) {
	_, ok := ValidateInput("hello\x00world")
	assert.False(t, ok)
}

func TestValidateInputRejectsScriptTags(t *testing.T) {
	_, ok := ValidateInput("<script>alert(1)</script>")
	assert.False(t, ok)
}

func TestValidateInputTrimsAndAccepts(t *testing.T) {
	cleaned, ok := ValidateInput("  what is compound interest?  ")
	assert.True(t, ok)
	assert.Equal(t, "what is compound interest?", cleaned)
}

func TestIsValidImageURLRequiresImageExtension(t *testing.T) {
	assert.True(t, IsValidImageURL("https://cdn.example.com/covers/ep1.jpg?sig=abc"))
	assert.False(t, IsValidImageURL("https://cdn.example.com/covers/ep1.mp3"))
	assert.False(t, IsValidImageURL("not-a-url"))
}
