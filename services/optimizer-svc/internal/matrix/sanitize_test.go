package matrix

import (
	"math"
	"reflect"
	"testing"

	"routeopt/pkg/domain"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input [][]float64
		want  [][]float64
	}{
		{
			name: "clean matrix unchanged",
			input: [][]float64{
				{0, 10, 20},
				{10, 0, 15},
				{20, 15, 0},
			},
			want: [][]float64{
				{0, 10, 20},
				{10, 0, 15},
				{20, 15, 0},
			},
		},
		{
			name: "nan and inf replaced",
			input: [][]float64{
				{0, math.NaN()},
				{math.Inf(1), 0},
			},
			want: [][]float64{
				{0, domain.MaxSafeDistance},
				{domain.MaxSafeDistance, 0},
			},
		},
		{
			name: "negative off-diagonal replaced",
			input: [][]float64{
				{0, -5},
				{3, 0},
			},
			want: [][]float64{
				{0, domain.MaxSafeDistance},
				{3, 0},
			},
		},
		{
			name: "oversized values capped",
			input: [][]float64{
				{0, domain.MaxSafeDistance * 2},
				{1, 0},
			},
			want: [][]float64{
				{0, domain.MaxSafeDistance},
				{1, 0},
			},
		},
		{
			name: "dirty diagonal zeroed",
			input: [][]float64{
				{7, 1},
				{1, math.NaN()},
			},
			want: [][]float64{
				{0, 1},
				{1, 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Sanitize() = %v, want %v", got, tt.want)
			}
			if !IsSanitized(got) {
				t.Error("result must pass IsSanitized")
			}
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	input := [][]float64{
		{0, math.NaN(), -3},
		{math.Inf(-1), 5, domain.MaxSafeDistance * 10},
		{1, 2, 0},
	}

	once := Sanitize(input)
	twice := Sanitize(once)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second pass changed matrix: %v != %v", once, twice)
	}
}

func TestSanitize_DoesNotMutateInput(t *testing.T) {
	input := [][]float64{
		{0, math.NaN()},
		{1, 0},
	}

	Sanitize(input)

	if !math.IsNaN(input[0][1]) {
		t.Error("input matrix was mutated")
	}
}

func TestIsSanitized(t *testing.T) {
	if IsSanitized([][]float64{{0, math.NaN()}, {1, 0}}) {
		t.Error("matrix with NaN must not pass")
	}
	if IsSanitized([][]float64{{5, 1}, {1, 0}}) {
		t.Error("matrix with non-zero diagonal must not pass")
	}
	if !IsSanitized([][]float64{{0, 1}, {1, 0}}) {
		t.Error("clean matrix must pass")
	}
}
