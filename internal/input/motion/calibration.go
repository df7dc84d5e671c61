package motion

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dshills/padstorm/internal/input/sample"
)

// Calibration converts raw sensor counts into physical units.
//
//	accel = (raw - AccelOffset) / AccelDivisor * AccelRangeG * g
//	gyro  = raw / GyroDivisor * GyroRangeDPS * π/180
//
// A zero divisor marks the sensor as absent and yields zero vectors.
type Calibration struct {
	Model string

	AccelDivisor float64
	AccelRangeG  float64
	AccelOffset  float64

	GyroDivisor  float64
	GyroRangeDPS float64
}

// Hardware presets.
var (
	DualSense = Calibration{
		Model:        "dualsense",
		AccelDivisor: 16384, AccelRangeG: 8,
		GyroDivisor: 1024, GyroRangeDPS: 2000,
	}
	DualShock4 = Calibration{
		Model:        "dualshock4",
		AccelDivisor: 16384, AccelRangeG: 8,
		GyroDivisor: 1024, GyroRangeDPS: 2000,
	}
	// DualShock3 reports only acceleration, centered on 0x200.
	DualShock3 = Calibration{
		Model:        "dualshock3",
		AccelDivisor: 113, AccelRangeG: 1, AccelOffset: 0x200,
	}
	SwitchPro = Calibration{
		Model:        "switch_pro",
		AccelDivisor: 4096, AccelRangeG: 1,
		GyroDivisor: 13371, GyroRangeDPS: 1,
	}
)

var presets = map[string]Calibration{
	DualSense.Model:  DualSense,
	DualShock4.Model: DualShock4,
	DualShock3.Model: DualShock3,
	SwitchPro.Model:  SwitchPro,
}

// Preset returns the calibration for a controller model name.
func Preset(model string) (Calibration, error) {
	c, ok := presets[strings.ToLower(strings.TrimSpace(model))]
	if !ok {
		return Calibration{}, fmt.Errorf("unknown calibration model %q (known: %s)",
			model, strings.Join(PresetNames(), ", "))
	}
	return c, nil
}

// PresetNames returns the known model names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply converts raw counts to a calibrated motion reading.
func (c Calibration) Apply(raw sample.MotionCounts) sample.Motion {
	return sample.Motion{
		Gyro: sample.Vec3{
			X: c.gyro(raw.Gyro[0]),
			Y: c.gyro(raw.Gyro[1]),
			Z: c.gyro(raw.Gyro[2]),
		},
		Accel: sample.Vec3{
			X: c.accel(raw.Accel[0]),
			Y: c.accel(raw.Accel[1]),
			Z: c.accel(raw.Accel[2]),
		},
		Valid: true,
	}
}

func (c Calibration) accel(raw int16) float64 {
	if c.AccelDivisor == 0 {
		return 0
	}
	return (float64(raw) - c.AccelOffset) / c.AccelDivisor * c.AccelRangeG * StandardGravity
}

func (c Calibration) gyro(raw int16) float64 {
	if c.GyroDivisor == 0 {
		return 0
	}
	return float64(raw) / c.GyroDivisor * c.GyroRangeDPS * math.Pi / 180
}
