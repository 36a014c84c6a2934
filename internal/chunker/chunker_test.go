package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_RejectsBadParams(t *testing.T) {
	_, err := New(0, 0)
	require.Error(t, err)
	_, err = New(100, 100)
	require.Error(t, err)
	_, err = New(100, -1)
	require.Error(t, err)
}

func TestChunk_Deterministic(t *testing.T) {
	c, err := New(50, 10)
	require.NoError(t, err)

	input := strings.Repeat("evidence of safe manual handling procedures. ", 20)
	first := c.Chunk("doc-1", input)
	second := c.Chunk("doc-1", input)

	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].ChunkIndex, second[i].ChunkIndex)
		require.Equal(t, first[i].Text, second[i].Text)
	}
}

func TestChunk_IndexesContiguous(t *testing.T) {
	c, err := New(30, 5)
	require.NoError(t, err)

	chunks := c.Chunk("doc-1", strings.Repeat("abcde fghij ", 30))
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		require.Equal(t, i, chunk.ChunkIndex)
		require.Equal(t, "doc-1", chunk.DocumentID)
		require.NotEmpty(t, chunk.Text)
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)
	require.Empty(t, c.Chunk("doc-1", ""))
	require.Empty(t, c.Chunk("doc-1", "   \n\t  "))
}

func TestChunk_OverlapRetainsBoundaryContext(t *testing.T) {
	c, err := New(40, 20)
	require.NoError(t, err)

	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteByte(byte('a' + i%26))
	}
	chunks := c.Chunk("doc-1", sb.String())
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Text
		tail := prev[len(prev)-20:]
		require.True(t, strings.HasPrefix(chunks[i].Text, tail),
			"chunk %d does not start with the previous chunk's tail", i)
	}
}

func TestNormalize_StripsMarkdown(t *testing.T) {
	md := "# Assessment Conditions\n\nThe assessor **must** hold a current certificate.\n\n```\ncode block content\n```\n"
	out := Normalize(md)
	require.NotContains(t, out, "#")
	require.NotContains(t, out, "**")
	require.Contains(t, out, "Assessment Conditions")
	require.Contains(t, out, "must")
	require.Contains(t, out, "code block content")
}

func TestNormalize_PlainTextPassthrough(t *testing.T) {
	plain := "Learners are observed performing the task on three occasions."
	require.Contains(t, Normalize(plain), "Learners are observed")
}
