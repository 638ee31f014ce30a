package colors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAverage(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   string
	}{
		{"black and white", []string{"#fff", "#000"}, "#808080"},
		{"single long", []string{"#336699"}, "#336699"},
		{"short expands", []string{"#abc"}, "#aabbcc"},
		{"alpha retained", []string{"#ff0000ff", "#00ff00ff"}, "#808000ff"},
		{"short alpha", []string{"#f008", "#0f08"}, "#808000" + "88"},
		{"mixed alpha defaults opaque", []string{"#000", "#00000000"}, "#00000080"},
		{"trailing separator", []string{" #ff0000; ", "#0000ff"}, "#800080"},
		{"bad token skipped", []string{"red", "#123456", "#12345"}, "#123456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Average(tt.tokens)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAverage_NoColors(t *testing.T) {
	_, err := Average([]string{"nope", ""})
	assert.ErrorIs(t, err, ErrNoColors)

	_, err = Average(nil)
	assert.ErrorIs(t, err, ErrNoColors)
}

func TestAdd_LengthMismatch(t *testing.T) {
	_, err := add([]int{1, 2, 3}, []int{1, 2, 3, 4})
	assert.ErrorIs(t, err, ErrArrayLengthMismatch)
}

func TestAverage_MixedChannelCountsNeverMismatch(t *testing.T) {
	got, err := Average([]string{"#fff", "#00000080", "#ff0000", "#0f08"})
	require.NoError(t, err)
	assert.Len(t, got, 9)
}
