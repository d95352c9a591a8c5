package pagination_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/coopkit/pkg/pagination"
)

func TestPageNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		page     pagination.Page
		expected pagination.Page
	}{
		{
			name:     "zero value gets defaults",
			page:     pagination.Page{},
			expected: pagination.Page{Page: 1, Limit: pagination.DefaultLimit},
		},
		{
			name:     "negative page clamped",
			page:     pagination.Page{Page: -3, Limit: 10},
			expected: pagination.Page{Page: 1, Limit: 10},
		},
		{
			name:     "limit above max clamped",
			page:     pagination.Page{Page: 2, Limit: 500},
			expected: pagination.Page{Page: 2, Limit: pagination.MaxLimit},
		},
		{
			name:     "valid page untouched",
			page:     pagination.Page{Page: 3, Limit: 25},
			expected: pagination.Page{Page: 3, Limit: 25},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.page.Normalize())
		})
	}
}

func TestPageOffset(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, pagination.Page{Page: 1, Limit: 20}.Offset())
	assert.Equal(t, 40, pagination.Page{Page: 3, Limit: 20}.Offset())
	assert.Equal(t, 0, pagination.Page{}.Offset())
}

func TestSlice(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4, 5}

	t.Run("first page", func(t *testing.T) {
		t.Parallel()
		window, total := pagination.Slice(items, pagination.Page{Page: 1, Limit: 2})
		assert.Equal(t, []int{1, 2}, window)
		assert.Equal(t, 5, total)
	})

	t.Run("last partial page", func(t *testing.T) {
		t.Parallel()
		window, total := pagination.Slice(items, pagination.Page{Page: 3, Limit: 2})
		assert.Equal(t, []int{5}, window)
		assert.Equal(t, 5, total)
	})

	t.Run("page past the end", func(t *testing.T) {
		t.Parallel()
		window, total := pagination.Slice(items, pagination.Page{Page: 9, Limit: 2})
		assert.Empty(t, window)
		assert.Equal(t, 5, total)
	})

	t.Run("window is a copy", func(t *testing.T) {
		t.Parallel()
		window, _ := pagination.Slice(items, pagination.Page{Page: 1, Limit: 2})
		window[0] = 99
		assert.Equal(t, 1, items[0])
	})
}

func TestNewResult(t *testing.T) {
	t.Parallel()

	result := pagination.NewResult([]string{"a"}, 41, pagination.Page{Page: 0, Limit: 0})
	assert.Equal(t, 41, result.Total)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, pagination.DefaultLimit, result.PerPage)
	assert.Equal(t, []string{"a"}, result.Items)
}
