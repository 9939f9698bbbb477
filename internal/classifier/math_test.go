package classifier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftmax(t *testing.T) {
	p := Softmax([]float64{0, 0})
	assert.InDelta(t, 0.5, p[0], 1e-12)
	assert.InDelta(t, 0.5, p[1], 1e-12)

	p = Softmax([]float64{1000, 0})
	assert.InDelta(t, 1.0, p[0], 1e-12)
	assert.False(t, math.IsNaN(p[1]))

	assert.Empty(t, Softmax(nil))
}

func TestCrossEntropy(t *testing.T) {
	l, err := CrossEntropy([]float64{0, 0}, 1)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(2), l, 1e-12)

	_, err = CrossEntropy([]float64{0, 0}, 2)
	assert.Error(t, err)
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 2, Argmax([]float64{0.1, 0.2, 0.7}))
	assert.Equal(t, -1, Argmax(nil))
}

func TestNewOutput(t *testing.T) {
	out, err := NewOutput([][]float64{{0, 0}, {0, 0}}, []int{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, math.Log(2), out.Loss, 1e-12)
	assert.Len(t, out.Losses, 2)

	_, err = NewOutput([][]float64{{0, 0}}, []int{0, 1})
	assert.Error(t, err)
}
