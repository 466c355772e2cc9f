package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpression_Equal(t *testing.T) {
	tests := []struct {
		name     string
		a        Expression
		b        Expression
		expected bool
	}{
		{
			name:     "identical",
			a:        Expression{ID: "e1", Type: ExpressionTypeMath, Text: "y=x"},
			b:        Expression{ID: "e1", Type: ExpressionTypeMath, Text: "y=x"},
			expected: true,
		},
		{
			name:     "different text",
			a:        Expression{ID: "e1", Text: "y=x"},
			b:        Expression{ID: "e1", Text: "y=2x"},
			expected: false,
		},
		{
			name:     "different hidden flag",
			a:        Expression{ID: "e1", Hidden: true},
			b:        Expression{ID: "e1"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Equal(tt.b))
		})
	}
}

func TestPatch_IsEmpty(t *testing.T) {
	assert.True(t, Patch{}.IsEmpty())
	assert.False(t, TextPatch("").IsEmpty(), "explicit empty text is still a change")

	hidden := true
	assert.False(t, Patch{Hidden: &hidden}.IsEmpty())
}

func TestPatch_ApplyTo(t *testing.T) {
	expr := Expression{ID: "e1", Type: ExpressionTypeMath, Text: "y=x", Color: "#c74440"}

	color := "#2d70b3"
	hidden := true
	Patch{Color: &color, Hidden: &hidden}.ApplyTo(&expr)

	// Незатронутые поля остаются прежними
	assert.Equal(t, "y=x", expr.Text)
	assert.Equal(t, ExpressionTypeMath, expr.Type)
	assert.Equal(t, "#2d70b3", expr.Color)
	assert.True(t, expr.Hidden)
}

func TestExpressionsEqual(t *testing.T) {
	a := []Expression{{ID: "e1", Text: "y=x"}, {ID: "e2", Text: "y=2x"}}
	b := []Expression{{ID: "e1", Text: "y=x"}, {ID: "e2", Text: "y=2x"}}

	assert.True(t, ExpressionsEqual(a, b))
	assert.True(t, ExpressionsEqual(nil, []Expression{}))
	assert.False(t, ExpressionsEqual(a, b[:1]))
	assert.False(t, ExpressionsEqual(a, []Expression{b[1], b[0]}), "order matters")
}

func TestPeerPresence_IsNewerThan(t *testing.T) {
	older := PeerPresence{PeerID: "p1", Seq: 1}
	newer := PeerPresence{PeerID: "p1", Seq: 2}

	assert.True(t, newer.IsNewerThan(older))
	assert.False(t, older.IsNewerThan(newer))
	assert.False(t, older.IsNewerThan(older))
}
