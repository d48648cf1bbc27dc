package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSelector(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"aria-label=Search", `[aria-label="Search"]`},
		{`  ARIA-LABEL="Search box" `, `[aria-label="Search box"]`},
		{"name='q'", `[name="q"]`},
		{"id=main", "#main"},
		{`id=" spaced "`, "#spaced"},
		{"text=Sign up", "text=Sign up"},
		{"  input[type='search']  ", "input[type='search']"},
		{"#already", "#already"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeSelector(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeSelector(got), "normalization must be idempotent")
		})
	}
}

func TestNormalizeSelector_Idempotent(t *testing.T) {
	inputs := []string{
		"id=", "name=", "aria-label=", `id="'x'"`, "id= 'a b' ", "name=\"q\" ",
		"text= 'quoted' ", "a h3", "ID=Upper", `aria-label=" "`,
	}
	for _, in := range inputs {
		once := NormalizeSelector(in)
		assert.Equal(t, once, NormalizeSelector(once), "input %q", in)
	}
}

func TestSelectorHeuristics(t *testing.T) {
	assert.True(t, IsSearchSelector("input[name='Search']"))
	assert.True(t, IsSearchSelector("#query"))
	assert.True(t, IsSearchSelector("button[type=submit]"))
	assert.False(t, IsSearchSelector("#email"))

	assert.True(t, IsLoginSelector("text=Sign In"))
	assert.True(t, IsLoginSelector("#signin-button"))
	assert.True(t, IsLoginSelector("a.login"))
	assert.False(t, IsLoginSelector("#signup"))

	assert.True(t, IsLoginURL("https://accounts.google.com/v3/signin"))
	assert.True(t, IsLoginURL("https://example.com/Login?next=/"))
	assert.False(t, IsLoginURL("https://example.com/products"))
}
