package rest

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageParams(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantOffset int
		wantLimit  int
	}{
		{"defaults when absent", "/api/applications/", 0, 20},
		{"explicit values", "/api/applications/?offset=40&limit=25", 40, 25},
		{"zero limit falls back", "/api/applications/?limit=0", 0, 20},
		{"over-cap limit falls back", "/api/applications/?limit=500", 0, 20},
		{"negative offset clamps", "/api/applications/?offset=-5", 0, 20},
		{"garbage falls back", "/api/applications/?offset=abc&limit=xyz", 0, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, limit := pageParams(httptest.NewRequest("GET", tt.url, nil))
			assert.Equal(t, tt.wantOffset, offset)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestNewPage_EchoesServedLimit(t *testing.T) {
	p := newPage([]string{"a", "b"}, 50, 0, 20, 2)
	assert.Equal(t, 20, p.Pagination.Limit)
	assert.True(t, p.Pagination.HasMore)

	last := newPage([]string{"a"}, 41, 40, 20, 1)
	assert.False(t, last.Pagination.HasMore)
}
