package jobs

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions(`{"compressionLevel":"extreme","grayscale":true,"pages":[1,3,5]}`)
	require.NoError(t, err)

	assert.Equal(t, "extreme", opts.String("compressionLevel"))
	assert.True(t, opts.Bool("grayscale"))
	assert.Equal(t, []int{1, 3, 5}, opts.IntSlice("pages"))
}

func TestParseOptionsEmpty(t *testing.T) {
	opts, err := ParseOptions("")
	require.NoError(t, err)
	assert.Empty(t, opts)
	assert.Equal(t, "", opts.String("missing"))
	assert.False(t, opts.Bool("missing"))
	assert.Nil(t, opts.IntSlice("missing"))
}

func TestParseOptionsInvalid(t *testing.T) {
	_, err := ParseOptions("{not json")
	assert.Error(t, err)
}

func TestOptionsBoolString(t *testing.T) {
	opts := Options{"grayscale": "true", "other": "false"}
	assert.True(t, opts.Bool("grayscale"))
	assert.False(t, opts.Bool("other"))
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusSucceeded.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, Status("bogus").Valid())
	assert.True(t, StatusPending.Valid())
}

func TestIsKnownTool(t *testing.T) {
	for _, tool := range KnownTools {
		assert.True(t, IsKnownTool(tool), tool)
	}
	assert.False(t, IsKnownTool("shredPdf"))
}

func TestRoundMB(t *testing.T) {
	assert.Equal(t, 1.0, RoundMB(1024*1024))
	assert.Equal(t, 2.5, RoundMB(1024*1024*5/2))
	assert.Equal(t, 0.0, RoundMB(0))

	j := &Job{FileSize: 10 * 1024 * 1024}
	assert.Equal(t, 10.0, j.FileSizeMB())
}

func TestShortID(t *testing.T) {
	id := uuid.MustParse("3f2b8c1d-aaaa-bbbb-cccc-ddddeeeeffff")
	assert.Equal(t, "3f2b8c1d", ShortID(id))
}
