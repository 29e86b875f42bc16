package mosaic

import (
	"math"
	"testing"

	"github.com/Faultbox/heightgen/internal/terrain"
)

func TestNormalize_Endpoints(t *testing.T) {
	r := Range{Min: -120.5, Max: 873.25}

	if got := Normalize(r.Min, r); got != 0 {
		t.Errorf("min should map to 0, got %d", got)
	}
	if got := Normalize(r.Max, r); got != 255 {
		t.Errorf("max should map to 255, got %d", got)
	}
}

func TestNormalize_Rounding(t *testing.T) {
	r := Range{Min: 0, Max: 255}
	tests := []struct {
		v        float32
		expected uint8
	}{
		{0.49, 0},
		{0.5, 1},
		{127.4, 127},
		{127.6, 128},
		{254.5, 255},
	}
	for _, tc := range tests {
		if got := Normalize(tc.v, r); got != tc.expected {
			t.Errorf("Normalize(%f): expected %d, got %d", tc.v, tc.expected, got)
		}
	}
}

func TestNormalize_Degenerate(t *testing.T) {
	for _, r := range []Range{{Min: 5, Max: 5}, {Min: 0, Max: 0}, {Min: 3, Max: -1}, EmptyRange()} {
		for _, v := range []float32{-1e6, 0, 5, 1e6} {
			if got := Normalize(v, r); got != 0 {
				t.Errorf("Normalize(%f, %+v): expected 0, got %d", v, r, got)
			}
		}
	}
}

func TestNormalize_OutOfRangeSaturates(t *testing.T) {
	r := Range{Min: 0, Max: 10}
	if Normalize(-5, r) != 0 || Normalize(50, r) != 255 {
		t.Error("values outside the range should saturate")
	}
	if Normalize(float32(math.NaN()), r) != 0 {
		t.Error("NaN should map to 0")
	}
}

func TestRange_Fold(t *testing.T) {
	r := EmptyRange()
	if !r.Empty() {
		t.Error("EmptyRange should be empty")
	}

	r = r.Fold(Range{Min: 3, Max: 4}).Fold(Range{Min: -2, Max: 1}).Fold(Range{Min: 0, Max: 9})
	if r.Min != -2 || r.Max != 9 {
		t.Errorf("expected -2..9, got %f..%f", r.Min, r.Max)
	}
	if r.Empty() || r.Degenerate() {
		t.Error("folded range should be neither empty nor degenerate")
	}
}

func TestPolicy_Apply(t *testing.T) {
	r := Range{Min: -100, Max: 300}
	tests := []struct {
		name     string
		policy   Policy
		expected Range
	}{
		{"none", Policy{}, Range{-100, 300}},
		{"above sea", Policy{ClampAboveSea: true}, Range{0, 300}},
		{"below sea", Policy{ClampBelowSea: true}, Range{-100, 0}},
		{"both", Policy{ClampAboveSea: true, ClampBelowSea: true}, Range{0, 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.policy.Apply(r)
			if got != tc.expected {
				t.Errorf("expected %+v, got %+v", tc.expected, got)
			}
			if again := tc.policy.Apply(got); again != got {
				t.Errorf("Apply should be idempotent, got %+v", again)
			}
		})
	}
}

func TestPolicy_ClampAboveSeaNeverRaisesMax(t *testing.T) {
	p := Policy{ClampAboveSea: true}
	for _, r := range []Range{{-10, 50}, {-10, -5}, {5, 50}} {
		if got := p.Apply(r); got.Max != r.Max || got.Min != 0 {
			t.Errorf("Apply(%+v) = %+v", r, got)
		}
	}
	for _, v := range []float32{-7, 0, 7} {
		got := p.ClampSample(v)
		if v < 0 && got != 0 || v >= 0 && got != v {
			t.Errorf("ClampSample(%f) = %f", v, got)
		}
		if p.ClampSample(got) != got {
			t.Errorf("ClampSample should be idempotent at %f", v)
		}
	}
}

func TestPolicy_ClampBelowSea(t *testing.T) {
	p := Policy{ClampBelowSea: true}
	if p.ClampSample(12) != 0 || p.ClampSample(-12) != -12 {
		t.Error("below-sea policy should only cap positive values")
	}
}

func TestRenderTile(t *testing.T) {
	hf := &terrain.Heightfield{Valid: true}
	hf.Heights[0] = -50
	hf.Heights[1] = 50
	hf.Heights[terrain.TileResolution] = 150 // (0,1)

	out := RenderTile(hf, Range{Min: -50, Max: 150}, Policy{})
	if len(out) != TileBytes {
		t.Fatalf("expected %d bytes, got %d", TileBytes, len(out))
	}

	check := func(i int, want uint8) {
		t.Helper()
		for ch := 0; ch < 3; ch++ {
			if out[i*3+ch] != want {
				t.Errorf("pixel %d channel %d: expected %d, got %d", i, ch, want, out[i*3+ch])
			}
		}
	}
	check(0, 0)
	check(1, 128) // 255*100/200 = 127.5 rounds up
	check(terrain.TileResolution, 255)
	check(2, 64) // 0 -> 255*50/200 = 63.75
}

func TestRenderTile_ClampAboveSea(t *testing.T) {
	hf := &terrain.Heightfield{Valid: true}
	hf.Heights[0] = -30
	hf.Heights[1] = 100

	p := Policy{ClampAboveSea: true}
	out := RenderTile(hf, p.Apply(Range{Min: -30, Max: 100}), p)
	if out[0] != 0 || out[3] != 255 {
		t.Errorf("expected 0 and 255, got %d and %d", out[0], out[3])
	}
}

func TestRenderAreaTile(t *testing.T) {
	af := &terrain.AttributeField{}
	af.Areas[1] = 12
	af.Areas[2] = 12
	af.Areas[3] = 13

	out := RenderAreaTile(af)
	if out[0] != 0 || out[1] != 0 || out[2] != 0 {
		t.Error("area 0 should stay black")
	}
	if out[3] != out[6] || out[4] != out[7] || out[5] != out[8] {
		t.Error("equal areas should share a color")
	}
	if out[3] == out[9] && out[4] == out[10] && out[5] == out[11] {
		t.Error("different areas should get different colors")
	}
}
