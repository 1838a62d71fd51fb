package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContent_Deterministic(t *testing.T) {
	a := Content("We build great products.")
	b := Content("We build great products.")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestContent_SingleCharChange(t *testing.T) {
	a := Content("We build great products.")
	b := Content("We build great products!")
	assert.NotEqual(t, a, b)
}

func TestContent_EmptyInput(t *testing.T) {
	// Empty body text is a valid (if low-value) digest; it still gets a
	// stable fingerprint.
	assert.Equal(t, Content(""), Content(""))
	assert.NotEqual(t, Content(""), Content(" "))
}

func TestURL_DistinctFromContent(t *testing.T) {
	// Same bytes hash identically regardless of which helper is used; the
	// two exist for call-site clarity, not different algorithms.
	assert.Equal(t, URL("https://example.com"), Content("https://example.com"))
}
