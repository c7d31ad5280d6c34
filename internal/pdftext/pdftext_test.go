package pdftext

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/pdfqa/internal/model"
)

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "  \n\t ", want: ""},
		{in: "Section 1\n\n  Safety\tnotes", want: "Section 1 Safety notes"},
		{in: "a b", want: "a b"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Clean(tt.in))
	}
}

func TestExtractRejectsGarbage(t *testing.T) {
	_, err := Extract(nil)
	require.Error(t, err)
	_, err = Extract([]byte("this is not a pdf"))
	require.Error(t, err)
}

func TestHasText(t *testing.T) {
	pages := []model.Page{{Number: 1, Text: "short"}, {Number: 2, Text: ""}}
	require.False(t, HasText(pages, 10))
	pages = append(pages, model.Page{Number: 3, Text: "long enough text"})
	require.True(t, HasText(pages, 10))
}
