package motion

import (
	"math"
	"testing"

	"github.com/dshills/padstorm/internal/input/sample"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCalibrationApply(t *testing.T) {
	tests := []struct {
		name      string
		cal       Calibration
		raw       sample.MotionCounts
		wantAccel float64
		wantGyro  float64
	}{
		{"dualsense one g", DualSense, sample.MotionCounts{Accel: [3]int16{2048, 0, 0}, Gyro: [3]int16{1024, 0, 0}},
			StandardGravity, 2000 * math.Pi / 180},
		{"dualshock4 matches dualsense", DualShock4, sample.MotionCounts{Accel: [3]int16{-2048, 0, 0}, Gyro: [3]int16{-512, 0, 0}},
			-StandardGravity, -1000 * math.Pi / 180},
		{"dualshock3 centered", DualShock3, sample.MotionCounts{Accel: [3]int16{0x200 + 113, 0, 0}, Gyro: [3]int16{500, 0, 0}},
			StandardGravity, 0},
		{"switch pro", SwitchPro, sample.MotionCounts{Accel: [3]int16{4096, 0, 0}, Gyro: [3]int16{13371, 0, 0}},
			StandardGravity, math.Pi / 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.cal.Apply(tt.raw)
			if !m.Valid {
				t.Error("Valid = false, want true")
			}
			if !near(m.Accel.X, tt.wantAccel) {
				t.Errorf("Accel.X = %v, want %v", m.Accel.X, tt.wantAccel)
			}
			if !near(m.Gyro.X, tt.wantGyro) {
				t.Errorf("Gyro.X = %v, want %v", m.Gyro.X, tt.wantGyro)
			}
		})
	}
}

func TestDualShock3RestIsZero(t *testing.T) {
	m := DualShock3.Apply(sample.MotionCounts{Accel: [3]int16{0x200, 0x200, 0x200}})
	if m.Accel != (sample.Vec3{}) {
		t.Errorf("Accel = %v, want zero at the center count", m.Accel)
	}
}

func TestPreset(t *testing.T) {
	c, err := Preset(" DualSense ")
	if err != nil {
		t.Fatalf("Preset() error = %v", err)
	}
	if c != DualSense {
		t.Errorf("Preset() = %+v, want DualSense", c)
	}

	if _, err := Preset("gamecube"); err == nil {
		t.Error("Preset(gamecube) error = nil, want error")
	}
}

func TestPresetNames(t *testing.T) {
	want := []string{"dualsense", "dualshock3", "dualshock4", "switch_pro"}
	got := PresetNames()
	if len(got) != len(want) {
		t.Fatalf("PresetNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("PresetNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
