package model

import "testing"

func fp(v float64) *float64 { return &v }

func TestCheapestOf(t *testing.T) {
	cases := []struct {
		name                                string
		interior, oceanview, balcony, suite *float64
		want                                *float64
	}{
		{"all categories", fp(499), fp(649), fp(899), fp(1899), fp(499)},
		{"interior missing", nil, fp(649), fp(899), fp(1899), fp(649)},
		{"suite cheapest", fp(900), fp(950), fp(975), fp(850), fp(850)},
		{"single category", nil, nil, fp(720), nil, fp(720)},
		{"all missing", nil, nil, nil, nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CheapestOf(tc.interior, tc.oceanview, tc.balcony, tc.suite)
			switch {
			case tc.want == nil && got != nil:
				t.Fatalf("got %v, want nil", *got)
			case tc.want != nil && got == nil:
				t.Fatalf("got nil, want %v", *tc.want)
			case tc.want != nil && *got != *tc.want:
				t.Fatalf("got %v, want %v", *got, *tc.want)
			}
		})
	}
}

func TestCheapestOfDoesNotAliasInputs(t *testing.T) {
	interior := fp(500)
	got := CheapestOf(interior, nil, nil, nil)
	*got = 1
	if *interior != 500 {
		t.Fatalf("result must be a copy, input mutated to %v", *interior)
	}
}
