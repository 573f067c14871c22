package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "lowercases scheme and host",
			in:   "HTTPS://Example.COM/Docs",
			want: "https://example.com/Docs",
		},
		{
			name: "strips trailing slash",
			in:   "https://example.com/docs/",
			want: "https://example.com/docs",
		},
		{
			name: "bare path becomes root",
			in:   "https://example.com",
			want: "https://example.com/",
		},
		{
			name: "drops tracking params and sorts the rest",
			in:   "https://example.com/a?utm_source=x&b=2&a=1&fbclid=z&gclid=q",
			want: "https://example.com/a?a=1&b=2",
		},
		{
			name: "drops ref-prefixed and pagination params",
			in:   "https://example.com/list?refid=3&page=2&q=shoes",
			want: "https://example.com/list?q=shoes",
		},
		{
			name: "drops fragment",
			in:   "https://example.com/docs#install",
			want: "https://example.com/docs",
		},
		{
			name: "unparseable returned unchanged",
			in:   "://not a url",
			want: "://not a url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalURL(tt.in))
		})
	}
}

func TestCanonicalURL_CollapsesVariants(t *testing.T) {
	variants := []string{
		"https://example.com/pricing",
		"https://example.com/pricing/",
		"https://EXAMPLE.com/pricing?utm_campaign=spring",
		"https://example.com/pricing#plans",
	}
	for _, v := range variants {
		assert.Equal(t, "https://example.com/pricing", canonicalURL(v), v)
	}
}
