package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/pdfqa/internal/model"
)

func defaultChunker(t *testing.T) *Chunker {
	t.Helper()
	c, err := NewChunker(ChunkerConfig{Size: 1000, Overlap: 150, MinChunkSize: 50, MinPageChars: 10})
	require.NoError(t, err)
	return c
}

func pageText(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(byte('a' + i%26))
	}
	return sb.String()
}

func TestChunkTwoThousandChars(t *testing.T) {
	c := defaultChunker(t)
	text := pageText(2000)
	chunks := c.Chunk(context.Background(), "manual.pdf", []model.Page{{Number: 1, Text: text}})
	require.Len(t, chunks, 2)
	require.Equal(t, text[:1000], chunks[0].Content)
	require.Equal(t, text[850:], chunks[1].Content)
	require.Equal(t, 0, chunks[0].Seq)
	require.Equal(t, 1, chunks[1].Seq)
	for _, ch := range chunks {
		require.Equal(t, 1, ch.Page)
		require.Equal(t, "manual.pdf", ch.Document)
		require.Equal(t, "manual.pdf", ch.SourceRef)
	}
}

func TestChunkCoverageAndBounds(t *testing.T) {
	c := defaultChunker(t)
	for _, n := range []int{50, 999, 1000, 1150, 1151, 1999, 2001, 2851, 5000, 12345} {
		text := []rune(pageText(n))
		chunks := c.Chunk(context.Background(), "doc.pdf", []model.Page{{Number: 3, Text: string(text)}})
		require.NotEmpty(t, chunks, "n=%d", n)
		pos := 0
		for i, ch := range chunks {
			l := len([]rune(ch.Content))
			require.LessOrEqual(t, l, 1150, "n=%d chunk=%d", n, i)
			require.GreaterOrEqual(t, l, 50, "n=%d chunk=%d", n, i)
			require.Equal(t, string(text[pos:pos+l]), ch.Content)
			if i < len(chunks)-1 {
				pos += 1000 - 150
			} else {
				require.Equal(t, n, pos+l, "last chunk must reach the end, n=%d", n)
			}
		}
	}
}

func TestChunkShortPages(t *testing.T) {
	c := defaultChunker(t)
	chunks := c.Chunk(context.Background(), "scan.pdf", []model.Page{
		{Number: 1, Text: "   "},
		{Number: 2, Text: "  tiny  "},
		{Number: 3, Text: "Only a short caption here."},
	})
	require.Len(t, chunks, 1)
	require.Equal(t, 3, chunks[0].Page)
	require.Equal(t, "Only a short caption here.", chunks[0].Content)
}

func TestChunksNeverSpanPages(t *testing.T) {
	c := defaultChunker(t)
	pages := []model.Page{
		{Number: 1, Text: pageText(1200)},
		{Number: 2, Text: pageText(300)},
	}
	chunks := c.Chunk(context.Background(), "doc.pdf", pages)
	require.Len(t, chunks, 3)
	require.Equal(t, []int{1, 1, 2}, []int{chunks[0].Page, chunks[1].Page, chunks[2].Page})
	require.Equal(t, 0, chunks[2].Seq)
}

func TestChunkIDsAreDeterministic(t *testing.T) {
	c := defaultChunker(t)
	pages := []model.Page{{Number: 1, Text: pageText(3000)}}
	a := c.Chunk(context.Background(), "doc.pdf", pages)
	b := c.Chunk(context.Background(), "doc.pdf", pages)
	require.Equal(t, len(a), len(b))
	ids := make(map[string]bool)
	for i := range a {
		require.Equal(t, a[i].ID, b[i].ID)
		require.Len(t, a[i].ID, 64)
		ids[a[i].ID] = true
	}
	require.Len(t, ids, len(a))
	require.NotEqual(t, ChunkID("doc.pdf", 1, 0), ChunkID("doc.pdf", 10, 0))
	require.NotEqual(t, ChunkID("a", 11, 0), ChunkID("a1", 1, 0))
}

func TestChunkCountsRunes(t *testing.T) {
	c := defaultChunker(t)
	text := strings.Repeat("é", 1150)
	chunks := c.Chunk(context.Background(), "fr.pdf", []model.Page{{Number: 1, Text: text}})
	require.Len(t, chunks, 1)
	require.Equal(t, text, chunks[0].Content)
}

func TestNewChunkerRejectsBadConfig(t *testing.T) {
	tests := []ChunkerConfig{
		{Size: 0},
		{Size: 100, Overlap: 100},
		{Size: 100, Overlap: 10, MaxChunkSize: 90},
		{Size: 100, Overlap: 0, MaxChunkSize: 100, MinChunkSize: 50},
	}
	for _, cfg := range tests {
		_, err := NewChunker(cfg)
		require.Error(t, err, "%+v", cfg)
	}
}
