package sim

import (
	"math"
	"testing"
)

func TestFlow_MigrationRateFollowsVelocitySign(t *testing.T) {
	f, err := NewFlow(4, 4)
	if err != nil {
		t.Fatal(err)
	}
	f.SetVelocity(1, 1, 2.0, -3.0)

	tests := []struct {
		dir  Orientation
		want float64
	}{
		{Right, 2.0},
		{Left, 0},
		{Up, 3.0}, // vy < 0 pushes up
		{Down, 0},
	}
	for _, tt := range tests {
		if got := f.MigrationRate(1, 1, tt.dir); got != tt.want {
			t.Errorf("MigrationRate(%v) = %v, want %v", tt.dir, got, tt.want)
		}
	}
}

func TestFlow_ReorientationRate(t *testing.T) {
	f, err := NewFlow(4, 4)
	if err != nil {
		t.Fatal(err)
	}
	f.SetVorticity(2, 2, -6.0)
	rate, ccw := f.ReorientationRate(2, 2)
	if rate != 3.0 {
		t.Errorf("ReorientationRate = %v, want 3.0", rate)
	}
	if ccw {
		t.Error("negative vorticity reported ccw rotation")
	}
}

func TestPoiseuilleFlow_CenterlineAndWalls(t *testing.T) {
	// GIVEN a channel of odd height so the centerline is a lattice row
	v1 := 2.0
	f, err := NewPoiseuilleFlow(8, 11, v1)
	if err != nil {
		t.Fatal(err)
	}

	// THEN the center row moves at the peak velocity with zero vorticity
	vx, vy := f.VelocityAt(3, 5)
	if math.Abs(vx-v1) > 1e-12 {
		t.Errorf("centerline vx = %v, want %v", vx, v1)
	}
	if vy != 0 {
		t.Errorf("centerline vy = %v, want 0", vy)
	}
	rate, _ := f.ReorientationRate(3, 5)
	if math.Abs(rate) > 1e-12 {
		t.Errorf("centerline vorticity rate = %v, want 0", rate)
	}

	// AND the profile is symmetric about the centerline
	for dy := 1; dy <= 5; dy++ {
		above, _ := f.VelocityAt(0, 5-dy)
		below, _ := f.VelocityAt(0, 5+dy)
		if math.Abs(above-below) > 1e-12 {
			t.Errorf("profile asymmetric at dy=%d: %v vs %v", dy, above, below)
		}
	}

	// AND the shear rotates opposite ways on the two sides of the channel
	_, ccwTop := f.ReorientationRate(0, 1)
	_, ccwBottom := f.ReorientationRate(0, 9)
	if ccwTop == ccwBottom {
		t.Error("vorticity has the same sense on both channel halves")
	}
}

func TestPoiseuilleFlow_TooShallow(t *testing.T) {
	if _, err := NewPoiseuilleFlow(8, 2, 1.0); err == nil {
		t.Error("NewPoiseuilleFlow with height 2: want error, got nil")
	}
}

func TestPoiseuilleFlow_InteriorFasterThanEdges(t *testing.T) {
	f, err := NewPoiseuilleFlow(4, 9, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	center, _ := f.VelocityAt(0, 4)
	nearWall, _ := f.VelocityAt(0, 1)
	if center <= nearWall {
		t.Errorf("centerline vx %v not faster than near-wall vx %v", center, nearWall)
	}
}
