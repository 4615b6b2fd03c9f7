package shmifext

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRGBA(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	dst := make([]byte, 8)
	require.NoError(t, Normalize(dst, src, FormatRGBA8888, 2))
	assert.Equal(t, src, dst)
}

func TestNormalizeBGRASwapsChannels(t *testing.T) {
	// B=10 G=20 R=30 A=40
	src := []byte{10, 20, 30, 40}
	dst := make([]byte, 4)
	require.NoError(t, Normalize(dst, src, FormatBGRA8888, 1))
	assert.Equal(t, []byte{30, 20, 10, 40}, dst)
}

func TestNormalizeRGB565(t *testing.T) {
	src := make([]byte, 4)
	// full white and pure red
	binary.LittleEndian.PutUint16(src[0:], 0xFFFF)
	binary.LittleEndian.PutUint16(src[2:], 0xF800)

	dst := make([]byte, 8)
	require.NoError(t, Normalize(dst, src, FormatRGB565, 2))
	assert.Equal(t, []byte{255, 255, 255, 255}, dst[:4])
	assert.Equal(t, []byte{255, 0, 0, 255}, dst[4:])
}

func TestNormalizeRGB565BitReplication(t *testing.T) {
	src := make([]byte, 2)
	// r5=16 g6=32 b5=8
	binary.LittleEndian.PutUint16(src, 16<<11|32<<5|8)

	dst := make([]byte, 4)
	require.NoError(t, Normalize(dst, src, FormatRGB565, 1))
	assert.Equal(t, byte(16<<3|16>>2), dst[0])
	assert.Equal(t, byte(32<<2|32>>4), dst[1])
	assert.Equal(t, byte(8<<3|8>>2), dst[2])
	assert.Equal(t, byte(0xff), dst[3])
}

func TestNormalizeARGB1555AlphaForcedOpaque(t *testing.T) {
	src := make([]byte, 4)
	// alpha bit clear on the first pixel, set on the second
	binary.LittleEndian.PutUint16(src[0:], 0x7FFF)
	binary.LittleEndian.PutUint16(src[2:], 0xFFFF)

	dst := make([]byte, 8)
	require.NoError(t, Normalize(dst, src, FormatARGB1555, 2))
	assert.Equal(t, []byte{255, 255, 255, 255}, dst[:4])
	assert.Equal(t, []byte{255, 255, 255, 255}, dst[4:])
}

func TestNormalizeShortBuffers(t *testing.T) {
	assert.Error(t, Normalize(make([]byte, 4), make([]byte, 8), FormatRGBA8888, 2))
	assert.Error(t, Normalize(make([]byte, 8), make([]byte, 4), FormatRGBA8888, 2))
	assert.Error(t, Normalize(make([]byte, 4), make([]byte, 4), PixelFormat(99), 1))
}
