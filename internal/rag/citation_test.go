package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/pdfqa/internal/model"
	appErr "github.com/xxxsen/pdfqa/internal/pkg/errors"
)

func TestBuildDedupesByPage(t *testing.T) {
	sources := []model.ScoredChunk{
		scored("a.pdf", 2, 0.9, "first chunk of page two"),
		scored("b.pdf", 5, 0.8, "other doc"),
		scored("a.pdf", 2, 0.7, "second chunk of page two"),
	}
	signer := &stubSigner{}
	b := NewCitationBuilder(signer, time.Minute, 0)
	cites, err := b.Build(context.Background(), []int{3, 2, 1, 9}, sources)
	require.NoError(t, err)
	require.Len(t, cites, 2)
	require.Equal(t, "a.pdf", cites[0].Document)
	require.Equal(t, 2, cites[0].Page)
	require.Equal(t, "second chunk of page two", cites[0].Snippet)
	require.True(t, strings.HasSuffix(cites[0].URL, "#page=2&view=FitH,top"))
	require.Equal(t, "b.pdf", cites[1].Document)
	require.Equal(t, 2, signer.calls)
}

func TestBuildNoMarkers(t *testing.T) {
	signer := &stubSigner{}
	cites, err := NewCitationBuilder(signer, time.Minute, 200).Build(context.Background(), nil,
		[]model.ScoredChunk{scored("a.pdf", 1, 0.9, "x")})
	require.NoError(t, err)
	require.Empty(t, cites)
	require.Zero(t, signer.calls)
}

func TestBuildStorageFailure(t *testing.T) {
	signer := &stubSigner{err: errors.New("access denied")}
	_, err := NewCitationBuilder(signer, time.Minute, 200).Build(context.Background(), []int{1},
		[]model.ScoredChunk{scored("a.pdf", 1, 0.9, "x")})
	require.Equal(t, appErr.StageStorage, appErr.StageOf(err))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", Truncate("short", 200))
	long := strings.Repeat("word ", 100)
	got := Truncate(long, 200)
	require.LessOrEqual(t, len([]rune(got)), 200)
	require.True(t, strings.HasSuffix(got, "word..."))
	require.Equal(t, strings.Repeat("x", 197)+"...", Truncate(strings.Repeat("x", 300), 200))
}

func TestPageAnchor(t *testing.T) {
	require.Equal(t, "u#page=4&view=FitH,top", PageAnchor("u", 4))
	require.Equal(t, "u", PageAnchor("u", 0))
}
