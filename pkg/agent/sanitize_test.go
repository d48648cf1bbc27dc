package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "https://www.google.com"},
		{"   ", "https://www.google.com"},
		{"https://example.com/a?b=c", "https://example.com/a?b=c"},
		{"HTTP://Example.com", "HTTP://Example.com"},
		{"go to https://docs.python.org/3/ now.", "https://docs.python.org/3/"},
		{"open (https://x.io/path).", "https://x.io/path"},
		{"youtube.com", "https://youtube.com"},
		{"please open www.coursera.org/learn for me", "https://www.coursera.org/learn"},
		{"visit example.co.in.", "https://example.co.in"},
		{"not a url, just search for cats", "https://www.google.com/search?q=not+a+url%2C+just+search+for+cats"},
		{"cats", "https://www.google.com/search?q=cats"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeURL(tt.in))
		})
	}
}
