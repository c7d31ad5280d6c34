package dbutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestFinalize(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		args      []interface{}
		wantQuery string
		wantArgs  []interface{}
	}{
		{
			name:      "rebind only",
			query:     "SELECT name FROM docs WHERE name = ? AND pages = ?",
			args:      []interface{}{"a.pdf", 3},
			wantQuery: "SELECT name FROM docs WHERE name = $1 AND pages = $2",
			wantArgs:  []interface{}{"a.pdf", 3},
		},
		{
			name:      "limit offset swap",
			query:     "SELECT name FROM docs WHERE pages = ? LIMIT ?,?",
			args:      []interface{}{3, 10, 20},
			wantQuery: "SELECT name FROM docs WHERE pages = $1 LIMIT $2 OFFSET $3",
			wantArgs:  []interface{}{3, 20, 10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := Finalize(tt.query, tt.args)
			require.Equal(t, tt.wantQuery, q)
			require.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestErrorCodes(t *testing.T) {
	require.True(t, IsUndefinedTable(&pq.Error{Code: "42P01"}))
	require.True(t, IsUndefinedTable(fmt.Errorf("select: %w", &pq.Error{Code: "42P01"})))
	require.False(t, IsUndefinedTable(&pq.Error{Code: "23505"}))
	require.False(t, IsUndefinedTable(errors.New("boom")))
}
