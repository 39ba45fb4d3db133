package composite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	tc, ok := cat.Composite("true-color")
	require.True(t, ok)
	assert.Equal(t, Channels{Red: "B04", Green: "B03", Blue: "B02"}, tc.Channels)
	assert.Equal(t, 1.0, tc.Saturation)
	assert.Equal(t, "true-color", cat.DefaultCompositeID())

	_, ok = cat.Composite("does-not-exist")
	assert.False(t, ok)

	opts := cat.FusionOptions()
	require.NotEmpty(t, opts)
	actions := map[string]string{}
	for _, o := range opts {
		assert.False(t, o.Enabled, o.ID)
		actions[o.ID] = o.Action
	}
	assert.Equal(t, map[string]string{
		"pan-sharpening":   "pan-sharpening",
		"cloud-filling":    "cloud-filling",
		"spectral-harmony": "spectral-harmony",
		"co-registration":  "co-registration",
		"sar-optical":      "",
	}, actions, "only the backend's fusion actions are issued")
}

func TestFusionOptionsAreCopies(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	first := cat.FusionOptions()
	first[0].Enabled = true
	assert.False(t, cat.FusionOptions()[0].Enabled)
}

func TestLoadRejectsDuplicates(t *testing.T) {
	doc := `
composites:
  - id: a
    name: A
  - id: a
    name: B
`
	_, err := Load(strings.NewReader(doc))
	assert.ErrorContains(t, err, "duplicate composite id")
}

func TestLoadRejectsEmpty(t *testing.T) {
	_, err := Load(strings.NewReader("composites: []"))
	assert.Error(t, err)
}
