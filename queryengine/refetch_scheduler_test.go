package queryengine

import "testing"

func TestGCDComputesGreatestCommonDivisor(t *testing.T) {
	cases := []struct{ a, b, want int64 }{
		{12, 8, 4},
		{1000, 3000, 1000},
		{7, 13, 1},
		{0, 5, 5},
	}
	for _, c := range cases {
		if got := gcd(c.a, c.b); got != c.want {
			t.Errorf("gcd(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
