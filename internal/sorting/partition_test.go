package sorting

import (
	"math/rand/v2"
	"slices"
	"testing"
)

func TestPartitionSortExample(t *testing.T) {
	got := PartitionSort([]int{-1, 2, -3, -8, 11, 10, 7, 12, 1, 4, 14, 0, -7, 3, 8,
		13, -4, 15, -9, 6, 16, 9, 5, 5, 1, -6, -2, -10, -5, 17})
	want := []int{-10, -9, -8, -7, -6, -5, -4, -3, -2, -1, 0, 1, 1, 2, 3,
		4, 5, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17}
	if !slices.Equal(got, want) {
		t.Fatalf("PartitionSort() = %v, want %v", got, want)
	}
}

func TestPartitionSortShapes(t *testing.T) {
	ascending := make([]int, 2000)
	descending := make([]int, 2000)
	for i := range ascending {
		ascending[i] = i
		descending[i] = len(descending) - i
	}
	constant := slices.Repeat([]int{7}, 1500)
	random := make([]int, 100000)
	for i := range random {
		random[i] = rand.IntN(2001) - 1000
	}

	tests := []struct {
		name  string
		input []int
	}{
		{"nil", nil},
		{"empty", []int{}},
		{"single", []int{42}},
		{"pair", []int{2, 1}},
		{"ascending", ascending},
		{"descending", descending},
		{"constant", constant},
		{"random large", random},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := slices.Clone(tt.input)
			slices.Sort(want)

			got := PartitionSort(slices.Clone(tt.input))
			if !slices.Equal(got, want) {
				t.Fatalf("PartitionSort() output is not the sorted input (len %d)", len(tt.input))
			}
		})
	}
}

func TestPartitionBounds(t *testing.T) {
	a := []int{5, 1, 5, 9, 3, 5, 7}
	lt, gt := partition(a, 5)

	for i, v := range a {
		switch {
		case i < lt && v >= 5:
			t.Fatalf("a[%d]=%d should be < pivot (%v)", i, v, a)
		case i >= lt && i < gt && v != 5:
			t.Fatalf("a[%d]=%d should equal pivot (%v)", i, v, a)
		case i >= gt && v <= 5:
			t.Fatalf("a[%d]=%d should be > pivot (%v)", i, v, a)
		}
	}
	if gt-lt != 3 {
		t.Fatalf("expected 3 pivot copies, got %d", gt-lt)
	}
}
