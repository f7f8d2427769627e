package kb

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosine([]float64{1, 0}, []float64{-1, 0}), 1e-9)
}

func TestCosine_Degenerate(t *testing.T) {
	assert.True(t, math.IsNaN(cosine([]float64{1, 2}, []float64{1, 2, 3})))
	assert.True(t, math.IsNaN(cosine(nil, nil)))
	assert.True(t, math.IsNaN(cosine([]float64{0, 0}, []float64{1, 2})))
}

func TestChunkText_PacksParagraphs(t *testing.T) {
	content := "para one.\n\npara two.\n\npara three."
	chunks := chunkText(content, 25)

	require.Len(t, chunks, 2)
	assert.Equal(t, "para one.\n\npara two.", chunks[0])
	assert.Equal(t, "para three.", chunks[1])
}

func TestChunkText_SingleChunkAndEmpty(t *testing.T) {
	chunks := chunkText("short text", 1000)
	assert.Equal(t, []string{"short text"}, chunks)

	assert.Nil(t, chunkText("", 100))
	assert.Nil(t, chunkText("\n\n\n\n", 100))
}

func TestChunkText_OversizeParagraphKeptWhole(t *testing.T) {
	big := strings.Repeat("x", 50)
	chunks := chunkText("small\n\n"+big, 20)

	require.Len(t, chunks, 2)
	assert.Equal(t, "small", chunks[0])
	assert.Equal(t, big, chunks[1])
}
