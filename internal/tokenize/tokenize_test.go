package tokenize

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFit_Pads(t *testing.T) {
	got := Fit(Encoding{IDs: []int{101, 7, 8, 102}, Mask: []int{1, 1, 1, 1}}, 6, 0)

	assert.Equal(t, []int{101, 7, 8, 102, 0, 0}, got.IDs)
	assert.Equal(t, []int{1, 1, 1, 1, 0, 0}, got.Mask)
}

func TestFit_TruncatesKeepingLast(t *testing.T) {
	got := Fit(Encoding{IDs: []int{101, 1, 2, 3, 4, 102}}, 4, 0)

	assert.Equal(t, []int{101, 1, 2, 102}, got.IDs)
	assert.Equal(t, []int{1, 1, 1, 1}, got.Mask)
}

func TestFit_ExactLength(t *testing.T) {
	got := Fit(Encoding{IDs: []int{1, 2, 3}}, 3, 9)

	assert.Equal(t, []int{1, 2, 3}, got.IDs)
	assert.Equal(t, []int{1, 1, 1}, got.Mask)
}

func TestFit_CustomPadID(t *testing.T) {
	got := Fit(Encoding{IDs: []int{5}}, 3, 9)
	assert.Equal(t, []int{5, 9, 9}, got.IDs)
}

func TestUnpad(t *testing.T) {
	assert.Equal(t, []int{1, 2}, Unpad([]int{1, 2, 0, 0}, []int{1, 1, 0, 0}))
	assert.Empty(t, Unpad([]int{0}, []int{0}))
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0o644))

	p, err := resolve(dir)
	require.NoError(t, err)
	assert.Equal(t, file, p)

	p, err = resolve(file)
	require.NoError(t, err)
	assert.Equal(t, file, p)

	_, err = resolve(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
