package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadOptions(t *testing.T) {
	_, err := app.Parse([]string{"read", "/dev/null", "--max_blocks", "100"})
	require.NoError(t, err)

	options := readOptions()
	assert.Equal(t, uint64(100), options.MaxBlocks)
	assert.Equal(t, uint64(100), options.MaxRunBlocks)
	assert.True(t, options.PerFileCap)
	assert.NoError(t, options.Validate())

	_, err = app.Parse([]string{"read", "/dev/null", "--max_blocks", "128000",
		"--max_run_blocks", "16", "--no_per_file_cap"})
	require.NoError(t, err)

	options = readOptions()
	assert.Equal(t, uint64(128000), options.MaxBlocks)
	assert.Equal(t, uint64(16), options.MaxRunBlocks)
	assert.False(t, options.PerFileCap)
}

func TestDump(t *testing.T) {
	var out bytes.Buffer
	Dump(&out, struct {
		IoCount uint64
	}{IoCount: 3})
	assert.Equal(t, "{\n \"IoCount\": 3\n}\n", out.String())
}
