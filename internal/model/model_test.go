package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunk_ExternalID(t *testing.T) {
	c := Chunk{ID: "11111111-1111-1111-1111-111111111111", ChunkIndex: 3}
	require.Equal(t, "11111111-1111-1111-1111-111111111111:3", c.ExternalID())
}

func TestChunk_ExternalID_ZeroIndex(t *testing.T) {
	c := Chunk{ID: "abc", ChunkIndex: 0}
	require.Equal(t, "abc:0", c.ExternalID())
}
