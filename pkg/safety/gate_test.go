package safety

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/taskpilot/pkg/types"
)

func TestGate_DefaultTerms(t *testing.T) {
	g := MustNewGate(nil)

	blocked := []string{"checkout", "CHECKOUT", "Proceed to CheckOut now", "button.buy-now", "subscribe"}
	for _, text := range blocked {
		_, ok := g.Match(text)
		assert.True(t, ok, "expected %q to be blocked", text)
	}

	_, ok := g.Match("hello world")
	assert.False(t, ok)
}

func TestGate_Check(t *testing.T) {
	g := MustNewGate(nil)

	tests := []struct {
		action  types.Action
		blocked bool
	}{
		{types.Navigate{URL: "https://shop.example.com/Checkout"}, true},
		{types.Click{Selector: "#add-to-cart"}, false},
		{types.Click{Selector: "text=Buy now"}, true},
		{types.TypeText{Selector: "#q", Text: "hello world"}, false},
		{types.Press{Selector: "#q", Key: "Enter"}, false},
		{types.Scroll{Amount: 400}, false},
		{types.Wait{}, false},
		{types.Screenshot{}, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T", tt.action), func(t *testing.T) {
			err := g.Check(tt.action)
			if !tt.blocked {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsBlocked(err))
			assert.True(t, IsBlocked(fmt.Errorf("step 1: %w", err)))

			var be *BlockedError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tt.action.Kind(), be.Action)
			assert.NotEmpty(t, be.Reason)
		})
	}
}

func TestGate_CustomTerms(t *testing.T) {
	g, err := NewGate([]string{"  Delete ", "wire*transfer", ""})
	require.NoError(t, err)

	term, ok := g.Match("click delete account")
	assert.True(t, ok)
	assert.Equal(t, "delete", term)

	_, ok = g.Match("start a wire bank transfer")
	assert.True(t, ok)

	_, ok = g.Match("checkout")
	assert.False(t, ok, "custom list replaces the defaults")

	_, err = NewGate([]string{"[unclosed"})
	assert.Error(t, err)
}
