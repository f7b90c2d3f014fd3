package strategy

import "testing"

func TestEpochOpenClose(t *testing.T) {
	epoch := Epoch{Duration: 600}
	if epoch.IsOpen() {
		t.Fatalf("fresh epoch should not be open")
	}

	epoch.Open(1000)
	if !epoch.IsOpen() {
		t.Fatalf("epoch should be open after Open")
	}

	epoch.Clear()
	if epoch.IsOpen() {
		t.Fatalf("epoch should not be open after Clear")
	}
}

func TestShouldCloseTimeBoundary(t *testing.T) {
	epoch := Epoch{Duration: 600}
	epoch.Open(1000)

	if epoch.ShouldClose(1599, 0, 180) {
		t.Fatalf("should not close one second before expiry")
	}
	if !epoch.ShouldClose(1600, 0, 180) {
		t.Fatalf("should close exactly at expiry")
	}
	if !epoch.ShouldClose(2000, 0, 180) {
		t.Fatalf("should close after expiry")
	}
}

func TestShouldCloseRangeBreach(t *testing.T) {
	epoch := Epoch{Duration: 600}
	epoch.Open(1000)

	if epoch.ShouldClose(1100, 120, 180) {
		t.Fatalf("should not close with tick inside range")
	}
	if !epoch.ShouldClose(1100, 180, 180) {
		t.Fatalf("should close with anchored tick exactly at upper bound")
	}
	if !epoch.ShouldClose(1100, 240, 180) {
		t.Fatalf("should close with anchored tick past upper bound")
	}
	// Lower-bound exits ride out until time expiry.
	if epoch.ShouldClose(1100, -600, 180) {
		t.Fatalf("downward move should not force a close")
	}
}

func TestEpochReadsWorkOnValueCopies(t *testing.T) {
	view := func() Epoch { return Epoch{StartedAt: 1000, Duration: 600} }

	if !view().IsOpen() {
		t.Fatalf("epoch view should report open")
	}
	if !view().ShouldClose(1600, 0, 180) {
		t.Fatalf("epoch view should report close at expiry")
	}
	if view().ShouldClose(1599, 0, 180) {
		t.Fatalf("epoch view should not close before expiry")
	}
}

func TestShouldCloseRequiresOpenEpoch(t *testing.T) {
	epoch := Epoch{Duration: 600}
	if epoch.ShouldClose(5000, 999999, 180) {
		t.Fatalf("closed epoch should never report close")
	}
}
