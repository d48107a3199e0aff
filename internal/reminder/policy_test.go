package reminder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPolicy(t *testing.T) {
	tests := []struct {
		name  string
		input []int
		want  []int
	}{
		{name: "default", input: DefaultDaysBefore, want: []int{30, 7, 1}},
		{name: "duplicates keep first position", input: []int{7, 1, 7, 30, 1}, want: []int{7, 1, 30}},
		{name: "negatives and zero dropped", input: []int{-3, 0, 14}, want: []int{14}},
		{name: "nothing usable", input: []int{-1}, want: []int{}},
		{name: "nil", input: nil, want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(tt.input)
			assert.Equal(t, tt.want, p.Offsets())
			assert.Equal(t, len(tt.want) == 0, p.Empty())
		})
	}
}

func TestPolicy_OffsetsReturnsCopy(t *testing.T) {
	p := NewPolicy([]int{3, 2})
	offsets := p.Offsets()
	offsets[0] = 99
	assert.Equal(t, []int{3, 2}, p.Offsets())
}
