package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePage(t *testing.T) {
	cases := []struct {
		name               string
		page, size         int
		wantPage, wantSize int
		wantOffset         int
	}{
		{"defaults", 0, 0, 1, DefaultPageSize, 0},
		{"negative", -4, -1, 1, DefaultPageSize, 0},
		{"third page", 3, 10, 3, 10, 20},
		{"size capped", 2, 1000, 2, MaxPageSize, MaxPageSize},
		{"huge page clamped", math.MaxInt, 50, MaxPage, 50, (MaxPage - 1) * 50},
		{"huge page and size", math.MaxInt, math.MaxInt, MaxPage, MaxPageSize, (MaxPage - 1) * MaxPageSize},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, size, offset := NormalizePage(tc.page, tc.size)
			assert.Equal(t, tc.wantPage, page)
			assert.Equal(t, tc.wantSize, size)
			assert.Equal(t, tc.wantOffset, offset)
			assert.GreaterOrEqual(t, offset, 0)
			assert.LessOrEqual(t, offset, math.MaxInt32)
		})
	}
}
