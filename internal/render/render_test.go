package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Defaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, 1440, o.ViewportWidth)
	assert.Equal(t, 900, o.ViewportHeight)
	assert.Equal(t, 30*time.Second, o.Timeout)
	assert.Equal(t, 1500*time.Millisecond, o.SettleDelay)
	assert.Equal(t, 70, o.ScreenshotQuality)
	assert.Empty(t, o.UserAgent)
}

func TestOptions_Overrides(t *testing.T) {
	o := Options{
		ViewportWidth:     1024,
		ViewportHeight:    768,
		Timeout:           10 * time.Second,
		ScreenshotQuality: 40,
		UserAgent:         "SiteAuditBot/1.0",
	}.withDefaults()
	assert.Equal(t, 1024, o.ViewportWidth)
	assert.Equal(t, 768, o.ViewportHeight)
	assert.Equal(t, 10*time.Second, o.Timeout)
	assert.Equal(t, 40, o.ScreenshotQuality)
	assert.Equal(t, "SiteAuditBot/1.0", o.UserAgent)
}
