package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		input  string
		want   []int
		wantOK bool
	}{
		{input: "0", want: []int{0}, wantOK: true},
		{input: "1,3", want: []int{1, 3}, wantOK: true},
		{input: " 2, 4 ,5 ", want: []int{2, 4, 5}, wantOK: true},
		{input: "1 3", want: []int{1, 3}, wantOK: true},
		{input: "3,3,1", want: []int{3, 1}, wantOK: true},
		{input: "1,0,2", want: []int{0}, wantOK: true},
		{input: "", wantOK: false},
		{input: "apply 1", wantOK: false},
		{input: "1,", wantOK: false},
		{input: "Please rewrite my summary", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseSelection(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestIsApplyAll(t *testing.T) {
	assert.True(t, IsApplyAll([]int{0}))
	assert.False(t, IsApplyAll([]int{1}))
	assert.False(t, IsApplyAll(nil))
}
