package document

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitforge/kitforge/backend-go/internal/region"
	"github.com/kitforge/kitforge/backend-go/internal/stripe"
)

const sample = `{
  "activeTab": "colors",
  "design": {"svgPath": "/assets/design.svg"},
  "parts": {"front": {"color": "#ff0000"}, "collar": {"color": "#000000"}},
  "logos": {
    "front": [{"url": "/assets/crest.png", "left": 500, "top": 480, "scaleX": 0.5, "scaleY": 0.5, "angle": 15, "originX": "center", "originY": "center"}]
  },
  "orientation": "vertical",
  "stripes": {"back": {"tab2": {"count": 3, "color": "#00f", "position": 5, "gap": 10, "thickness": 5}}},
  "designs": {"hem": "/assets/hem.png"}
}`

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, TabColors, c.ActiveTab)
	assert.Equal(t, "#ff0000", c.Parts[region.Front].Color)
	require.Len(t, c.Logos[region.Front], 1)
	assert.Equal(t, 15.0, c.Logos[region.Front][0].Angle)
	assert.Equal(t, stripe.Vertical, c.Orientation)
	assert.Equal(t, 3, c.Stripes[region.Back][region.Tab2].Count)

	assert.Equal(t, "/assets/hem.png", c.DesignRef(region.Hem))
	assert.Equal(t, "/assets/design.svg", c.DesignRef(region.Front))
}

func TestParseRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"bad json":     `{`,
		"tab":          `{"activeTab": "logos"}`,
		"orientation":  `{"orientation": "diagonal"}`,
		"part region":  `{"parts": {"pocket": {"color": "#fff"}}}`,
		"logo region":  `{"logos": {"pocket": []}}`,
		"logo url":     `{"logos": {"front": [{"scaleX": 1, "scaleY": 1}]}}`,
		"logo scale":   `{"logos": {"front": [{"url": "a.png", "scaleX": 0, "scaleY": 1}]}}`,
		"logo origin":  `{"logos": {"front": [{"url": "a.png", "scaleX": 1, "scaleY": 1, "originX": "top"}]}}`,
		"stripe slot":  `{"stripes": {"front": {"tab7": {"count": 1}}}}`,
		"stripe count": `{"stripes": {"front": {"tab1": {"count": -1}}}}`,
	} {
		_, err := Parse(strings.NewReader(doc))
		assert.Error(t, err, name)
	}

	_, err := Parse(strings.NewReader(`{"parts": {"pocket": {}}}`))
	assert.ErrorIs(t, err, region.ErrUnknownRegion)
	_, err = Parse(strings.NewReader(`{"stripes": {"front": {"tab7": {}}}}`))
	assert.ErrorIs(t, err, region.ErrInvalidSlot)
}

func TestDefaultRoundTrip(t *testing.T) {
	c := NewDefault()
	require.NoError(t, c.Validate())
	assert.Len(t, c.Parts, len(region.All))
	assert.Equal(t, stripe.DefaultConfig(), c.Stripes[region.Hem][region.Tab4])

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(c))
	back, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestIsBackgroundPlacement(t *testing.T) {
	bg := Logo{URL: "/assets/design.png", Left: 1024, Top: 1024, ScaleX: 1, ScaleY: 1}
	assert.True(t, IsBackgroundPlacement(bg, "/assets/design.png", 2048))

	moved := bg
	moved.Left = 1025
	assert.False(t, IsBackgroundPlacement(moved, "/assets/design.png", 2048))
	assert.False(t, IsBackgroundPlacement(bg, "/assets/other.png", 2048))
	assert.False(t, IsBackgroundPlacement(bg, "", 2048))
}
