package util

import (
	"bytes"
	"io"
	"testing"

	"github.com/OneOfOne/xxhash"
	"github.com/stretchr/testify/assert"
)

func TestStreamingDigestMatchesChecksum(t *testing.T) {
	data := bytes.Repeat([]byte("flight-data"), 100)

	d := NewDigest()
	_, err := io.Copy(d, bytes.NewReader(data))
	assert.NoError(t, err)

	assert.Equal(t, xxhash.Checksum64(data), d.Sum64())
	assert.NotEqual(t, xxhash.Checksum64(data[1:]), d.Sum64())
}

func TestFormatDigest(t *testing.T) {
	assert.Equal(t, "00000000000000ff", FormatDigest(0xFF))
	assert.Len(t, FormatDigest(NewDigest().Sum64()), 16)
}
