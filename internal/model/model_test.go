package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorEncoding(t *testing.T) {
	vec := []float32{0.5, -1.25, 0, 3.14159}

	var e Embedding
	e.SetVector(vec)
	assert.Len(t, e.VectorData, 16)
	assert.Equal(t, vec, e.Vector())

	assert.Nil(t, EncodeVector(nil))
	assert.Nil(t, DecodeVector(nil))
	assert.Nil(t, DecodeVector([]byte{1, 2, 3}))
}
