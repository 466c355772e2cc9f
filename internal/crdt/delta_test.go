package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/mathroom/internal/models"
)

func TestDelta_Validate(t *testing.T) {
	expr := &models.Expression{ID: "e1", Text: "y=x"}
	patch := models.TextPatch("y=2x")

	tests := []struct {
		name    string
		delta   Delta
		wantErr bool
	}{
		{
			name:  "valid insert at head",
			delta: Delta{Kind: KindInsert, ID: ID{Peer: "a", Seq: 1}, Clock: 1, Expression: expr},
		},
		{
			name:  "valid update",
			delta: Delta{Kind: KindUpdate, ID: ID{Peer: "a", Seq: 2}, Clock: 2, Target: ID{Peer: "a", Seq: 1}, Patch: &patch},
		},
		{
			name:  "valid delete",
			delta: Delta{Kind: KindDelete, ID: ID{Peer: "a", Seq: 3}, Clock: 3, Target: ID{Peer: "a", Seq: 1}},
		},
		{
			name:    "missing id",
			delta:   Delta{Kind: KindInsert, Clock: 1, Expression: expr},
			wantErr: true,
		},
		{
			name:    "zero clock",
			delta:   Delta{Kind: KindInsert, ID: ID{Peer: "a", Seq: 1}, Expression: expr},
			wantErr: true,
		},
		{
			name:    "insert without expression",
			delta:   Delta{Kind: KindInsert, ID: ID{Peer: "a", Seq: 1}, Clock: 1},
			wantErr: true,
		},
		{
			name:    "insert referencing itself",
			delta:   Delta{Kind: KindInsert, ID: ID{Peer: "a", Seq: 1}, Origin: ID{Peer: "a", Seq: 1}, Clock: 1, Expression: expr},
			wantErr: true,
		},
		{
			name:    "update without patch",
			delta:   Delta{Kind: KindUpdate, ID: ID{Peer: "a", Seq: 2}, Clock: 2, Target: ID{Peer: "a", Seq: 1}},
			wantErr: true,
		},
		{
			name:    "delete without target",
			delta:   Delta{Kind: KindDelete, ID: ID{Peer: "a", Seq: 2}, Clock: 2},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			delta:   Delta{Kind: "move", ID: ID{Peer: "a", Seq: 2}, Clock: 2},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.delta.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedDelta)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEncodeDecodeDelta(t *testing.T) {
	original := Delta{
		Kind:       KindInsert,
		ID:         ID{Peer: "peer-a", Seq: 4},
		Origin:     ID{Peer: "peer-b", Seq: 2},
		Clock:      17,
		Expression: &models.Expression{ID: "e1", Type: models.ExpressionTypeMath, Text: "y=x"},
	}

	data, err := EncodeDelta(original)
	require.NoError(t, err)

	decoded, err := DecodeDelta(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecodeDelta_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "i,abc,def"},
		{name: "truncated", data: `{"kind":"insert","id":{"peer":"a"`},
		{name: "unknown field", data: `{"kind":"delete","id":{"peer":"a","seq":1},"clock":1,"target":{"peer":"a","seq":1},"extra":true}`},
		{name: "wrong type", data: `{"kind":"delete","id":{"peer":"a","seq":"one"},"clock":1}`},
		{name: "structurally invalid", data: `{"kind":"insert","id":{"peer":"a","seq":1},"clock":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDelta([]byte(tt.data))
			assert.ErrorIs(t, err, ErrMalformedDelta)
		})
	}
}

func TestDelta_Dependency(t *testing.T) {
	head := Delta{Kind: KindInsert, ID: ID{Peer: "a", Seq: 1}}
	_, ok := head.Dependency()
	assert.False(t, ok, "Insert at head has no dependency")

	after := Delta{Kind: KindInsert, ID: ID{Peer: "a", Seq: 2}, Origin: ID{Peer: "a", Seq: 1}}
	dep, ok := after.Dependency()
	assert.True(t, ok)
	assert.Equal(t, ID{Peer: "a", Seq: 1}, dep)

	del := Delta{Kind: KindDelete, ID: ID{Peer: "b", Seq: 1}, Target: ID{Peer: "a", Seq: 2}}
	dep, ok = del.Dependency()
	assert.True(t, ok)
	assert.Equal(t, ID{Peer: "a", Seq: 2}, dep)
}

func TestVersionVector(t *testing.T) {
	v := VersionVector{"a": 3}

	assert.True(t, v.Covers(ID{Peer: "a", Seq: 3}))
	assert.False(t, v.Covers(ID{Peer: "a", Seq: 4}))
	assert.False(t, v.Covers(ID{Peer: "b", Seq: 1}))
	assert.Equal(t, uint64(0), v.Get("b"))

	clone := v.Clone()
	clone["a"] = 10
	assert.Equal(t, uint64(3), v.Get("a"), "Clone should not share state")
}
