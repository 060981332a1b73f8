// SPDX-License-Identifier: Unlicense OR MIT

package f64

import "testing"

func TestRoundedKey(t *testing.T) {
	v := Vec3{X: 1.4, Y: -1.4, Z: 2.6}
	k := v.RoundedKey()
	if k != [3]int64{1, -1, 3} {
		t.Fatalf("unexpected rounded key: %v", k)
	}
}

func TestToF32RoundTrip(t *testing.T) {
	v := Vec3{X: 1e8, Y: 2, Z: -3.5}
	f := v.ToF32()
	back := FromF32(f)
	if back.X != float64(f.X) {
		t.Fatalf("unexpected widen: %v", back)
	}
}
