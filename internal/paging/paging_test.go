package paging_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runair/runair/internal/paging"
)

func TestNewQuery(t *testing.T) {
	tests := []struct {
		name    string
		page    int
		size    int
		wantErr bool
	}{
		{"first page", 0, 20, false},
		{"later page", 7, 1, false},
		{"negative page", -1, 10, true},
		{"zero size", 0, 0, true},
		{"negative size", 0, -5, true},
		{"last addressable page", math.MaxInt / 3, 3, false},
		{"offset wraps negative", 1 << 62, 3, true},
		{"offset wraps to zero", 1 << 62, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := paging.NewQuery(tt.page, tt.size)
			if tt.wantErr {
				assert.ErrorIs(t, err, paging.ErrInvalidQuery)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.page, q.Page)
			assert.Equal(t, tt.size, q.Size)
		})
	}
}

func TestQuery_OffsetAndNext(t *testing.T) {
	q := paging.Query{Page: 2, Size: 500}
	assert.Equal(t, 1000, q.Offset())
	assert.Equal(t, paging.Query{Page: 3, Size: 500}, q.Next())
}

func TestNewResult_HasNext(t *testing.T) {
	tests := []struct {
		name  string
		query paging.Query
		items int
		total int
		want  bool
	}{
		{"full first page", paging.Query{Page: 0, Size: 500}, 500, 1200, true},
		{"full second page", paging.Query{Page: 1, Size: 500}, 500, 1200, true},
		{"last partial page", paging.Query{Page: 2, Size: 500}, 200, 1200, false},
		{"exact fit", paging.Query{Page: 1, Size: 10}, 10, 20, false},
		{"empty catalog", paging.Query{Page: 0, Size: 10}, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := paging.NewResult(tt.query, make([]int, tt.items), tt.total)
			assert.Equal(t, tt.want, r.HasNext())
			assert.Equal(t, tt.items, r.Len())
			assert.Equal(t, tt.total, r.TotalElements())
		})
	}
}

func TestResult_ContentIsCopied(t *testing.T) {
	source := []string{"a", "b"}
	r := paging.NewResult(paging.Query{Page: 0, Size: 2}, source, 2)

	source[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, r.Content())

	view := r.Content()
	view[1] = "mutated"
	assert.Equal(t, []string{"a", "b"}, r.Content())
}

func TestResult_NegativeTotalClamped(t *testing.T) {
	r := paging.NewResult[int](paging.Query{Page: 0, Size: 1}, nil, -3)
	assert.Equal(t, 0, r.TotalElements())
	assert.False(t, r.HasNext())
}

func TestMap(t *testing.T) {
	r := paging.NewResult(paging.Query{Page: 1, Size: 2}, []int{3, 4}, 10)
	mapped := paging.Map(r, func(v int) string { return string(rune('a' + v)) })

	assert.Equal(t, []string{"d", "e"}, mapped.Content())
	assert.Equal(t, 1, mapped.Page())
	assert.Equal(t, 2, mapped.Size())
	assert.True(t, mapped.HasNext())
}

func TestWithContent(t *testing.T) {
	r := paging.NewResult(paging.Query{Page: 0, Size: 2}, []int{1, 2}, 5)
	content := []string{"x", "y"}
	replaced := paging.WithContent(r, content)

	content[0] = "mutated"
	assert.Equal(t, []string{"x", "y"}, replaced.Content())
	assert.Equal(t, 5, replaced.TotalElements())
	assert.True(t, replaced.HasNext())
}
