package strategy

import "testing"

func TestComputeRangeAroundPositiveTick(t *testing.T) {
	rng, err := ComputeRange(123, 60, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rng.LowerTick != 120 || rng.UpperTick != 180 {
		t.Fatalf("range mismatch: %+v", rng)
	}
}

func TestComputeRangeFloorsNegativeTick(t *testing.T) {
	rng, err := ComputeRange(-125, 60, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rng.LowerTick != -240 || rng.UpperTick != -60 {
		t.Fatalf("range mismatch: %+v", rng)
	}
}

func TestComputeRangeAlignmentAndWidth(t *testing.T) {
	spacings := []int32{1, 10, 60, 200}
	ticks := []int32{-123456, -125, -60, -1, 0, 1, 59, 60, 123, 123456}
	offsets := []int32{0, 1, 3}

	for _, spacing := range spacings {
		for _, tick := range ticks {
			for _, offset := range offsets {
				rng, err := ComputeRange(tick, spacing, offset)
				if err != nil {
					t.Fatalf("spacing=%d tick=%d offset=%d: %v", spacing, tick, offset, err)
				}
				if rng.LowerTick%spacing != 0 || rng.UpperTick%spacing != 0 {
					t.Fatalf("bounds not aligned: spacing=%d tick=%d offset=%d rng=%+v", spacing, tick, offset, rng)
				}
				if width := rng.Width(); width != spacing*(2*offset+1) {
					t.Fatalf("width mismatch: spacing=%d offset=%d got=%d", spacing, offset, width)
				}
				anchor := AnchorTick(tick, spacing)
				if anchor > tick || tick-anchor >= spacing {
					t.Fatalf("anchor %d not floor of %d at spacing %d", anchor, tick, spacing)
				}
				if rng.LowerTick > anchor || rng.UpperTick <= anchor {
					t.Fatalf("range %+v does not straddle anchor %d", rng, anchor)
				}
			}
		}
	}
}

func TestComputeRangeInvalid(t *testing.T) {
	if _, err := ComputeRange(0, 0, 0); err == nil {
		t.Fatalf("expected error for zero spacing")
	}
	if _, err := ComputeRange(0, 60, -1); err == nil {
		t.Fatalf("expected error for negative offset")
	}
	if _, err := ComputeRange(887272, 60, 0); err == nil {
		t.Fatalf("expected error for range past the max tick")
	}
}

func TestAnchorTickNegativeMultiples(t *testing.T) {
	cases := []struct {
		tick, spacing, want int32
	}{
		{-60, 60, -60},
		{-61, 60, -120},
		{-1, 60, -60},
		{-125, 60, -180},
		{0, 60, 0},
		{59, 60, 0},
	}
	for _, tc := range cases {
		if got := AnchorTick(tc.tick, tc.spacing); got != tc.want {
			t.Fatalf("AnchorTick(%d, %d) = %d, want %d", tc.tick, tc.spacing, got, tc.want)
		}
	}
}
