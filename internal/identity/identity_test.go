package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollectionName_Deterministic(t *testing.T) {
	n1, err := CollectionName("/repo/a")
	require.NoError(t, err)
	n2, err := CollectionName("/repo/a")
	require.NoError(t, err)
	require.Equal(t, n1, n2)
	require.True(t, len(n1) == len("code_chunks_")+8)
	require.Regexp(t, `^code_chunks_[0-9a-f]{8}$`, n1)
}

func TestCollectionName_DiffersByPath(t *testing.T) {
	n1, _ := CollectionName("/repo/a")
	n2, _ := CollectionName("/repo/b")
	require.NotEqual(t, n1, n2)
}

func TestChunkID_Stable(t *testing.T) {
	id1 := ChunkID("src/a.go", 1, 10, "package a")
	id2 := ChunkID("src/a.go", 1, 10, "package a")
	require.Equal(t, id1, id2)
	require.Len(t, id1, 22)
	require.Regexp(t, `^chunk_[0-9a-f]{16}$`, id1)
}

func TestChunkID_ChangesWithContent(t *testing.T) {
	id1 := ChunkID("src/a.go", 1, 10, "package a")
	id2 := ChunkID("src/a.go", 1, 10, "package b")
	require.NotEqual(t, id1, id2)
}

func TestChunkID_ChangesWithLineRange(t *testing.T) {
	id1 := ChunkID("src/a.go", 1, 10, "package a")
	id2 := ChunkID("src/a.go", 2, 10, "package a")
	require.NotEqual(t, id1, id2)
}
