package sample

import (
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func TestIngestEdges(t *testing.T) {
	in := NewIngestor(DefaultConfig())

	steps := []struct {
		name    string
		down    bool
		want    ActionState
		wantVal float64
	}{
		{"press", true, ActionState{Pressed: true, JustPressed: true, Value: 1}, 1},
		{"hold", true, ActionState{Pressed: true, Value: 1}, 1},
		{"release", false, ActionState{JustReleased: true}, 0},
		{"idle", false, ActionState{}, 0},
	}

	for i, step := range steps {
		snap := in.Ingest(Raw{Time: at(i * 16), Buttons: map[ActionID]bool{"jump": step.down}})
		if got := snap.Action("jump"); got != step.want {
			t.Errorf("%s: Action(jump) = %+v, want %+v", step.name, got, step.want)
		}
		if snap.Tick() != uint64(i+1) {
			t.Errorf("%s: Tick() = %d, want %d", step.name, snap.Tick(), i+1)
		}
	}
}

func TestIngestMissingActionReleases(t *testing.T) {
	in := NewIngestor(DefaultConfig())
	in.Ingest(Raw{Time: at(0), Buttons: map[ActionID]bool{"fire": true}})

	snap := in.Ingest(Raw{Time: at(16)})
	st := snap.Action("fire")
	if st.Pressed || !st.JustReleased {
		t.Errorf("Action(fire) = %+v, want released edge", st)
	}

	found := false
	for _, id := range snap.Actions() {
		if id == "fire" {
			found = true
		}
	}
	if !found {
		t.Error("Actions() dropped a previously seen action")
	}
}

func TestIngestPreRegisteredActions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Actions = []ActionID{"b", "a"}
	in := NewIngestor(cfg)

	snap := in.Ingest(Raw{Time: at(0)})
	ids := snap.Actions()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("Actions() = %v, want [a b]", ids)
	}
}

func TestIngestPulse(t *testing.T) {
	in := NewIngestor(DefaultConfig())
	snap := in.Ingest(Raw{Time: at(0), Pulses: []ActionID{"jump"}})

	st := snap.Action("jump")
	if st.Pressed || !st.JustPressed || !st.JustReleased {
		t.Errorf("pulse state = %+v, want JustPressed and JustReleased without Pressed", st)
	}

	snap = in.Ingest(Raw{Time: at(16)})
	if st := snap.Action("jump"); st.JustPressed || st.JustReleased {
		t.Errorf("state after pulse = %+v, want idle", st)
	}
}

func TestIngestAxisDeadzone(t *testing.T) {
	tests := []struct {
		name        string
		raw         float64
		wantValue   float64
		wantPressed bool
	}{
		{"inside deadzone", 0.05, 0, false},
		{"at deadzone", 0.1, 0, false},
		{"past threshold", 0.82, 0.8, true},
		{"full negative", -1, -1, true},
		{"overrange", 3, 1, true},
		{"small", 0.3, 0.2 / 0.9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewIngestor(DefaultConfig())
			snap := in.Ingest(Raw{Time: at(0), Axes: map[ActionID]float64{"trigger": tt.raw}})
			st := snap.Action("trigger")
			if math.Abs(st.Value-tt.wantValue) > 1e-9 {
				t.Errorf("Value = %v, want %v", st.Value, tt.wantValue)
			}
			if st.Pressed != tt.wantPressed {
				t.Errorf("Pressed = %v, want %v", st.Pressed, tt.wantPressed)
			}
		})
	}
}

func TestIngestTouchClampAndDrop(t *testing.T) {
	in := NewIngestor(DefaultConfig())
	snap := in.Ingest(Raw{
		Time: at(0),
		Touch: []RawFinger{
			{Slot: 0, ID: 7, X: 1.4, Y: -0.2, Active: true},
			{Slot: 5, ID: 8, X: 0.5, Y: 0.5, Active: true},
		},
	})

	f, ok := snap.Finger(0)
	if !ok {
		t.Fatal("Finger(0) missing")
	}
	if f.Position != (Vec2{1, 0}) {
		t.Errorf("Position = %+v, want {1 0}", f.Position)
	}
	if !f.Active || f.ID != 7 {
		t.Errorf("Finger(0) = %+v, want active id 7", f)
	}
	if in.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", in.Dropped())
	}
	if snap.ActiveFingers() != 1 {
		t.Errorf("ActiveFingers() = %d, want 1", snap.ActiveFingers())
	}
	if _, ok := snap.Finger(2); ok {
		t.Error("Finger(2) reported present with two slots")
	}
}

func TestIngestTouchNonFinite(t *testing.T) {
	tests := []struct {
		name       string
		prev       []RawFinger
		cur        RawFinger
		wantActive bool
		wantPos    Vec2
	}{
		{
			name:       "continuing contact keeps last position",
			prev:       []RawFinger{{Slot: 0, ID: 3, X: 0.5, Y: 0.5, Active: true}},
			cur:        RawFinger{Slot: 0, ID: 3, X: 0.5, Y: math.NaN(), Active: true},
			wantActive: true,
			wantPos:    Vec2{0.5, 0.5},
		},
		{
			name: "new contact is dropped",
			cur:  RawFinger{Slot: 0, ID: 4, X: math.Inf(1), Y: 0.2, Active: true},
		},
		{
			name:    "different id is dropped",
			prev:    []RawFinger{{Slot: 0, ID: 3, X: 0.5, Y: 0.5, Active: true}},
			cur:     RawFinger{Slot: 0, ID: 9, X: math.NaN(), Y: math.NaN(), Active: true},
			wantPos: Vec2{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := NewIngestor(DefaultConfig())
			in.Ingest(Raw{Time: at(0), Touch: tt.prev})
			snap := in.Ingest(Raw{Time: at(16), Touch: []RawFinger{tt.cur}})

			f, _ := snap.Finger(0)
			if f.Active != tt.wantActive {
				t.Errorf("Active = %v, want %v", f.Active, tt.wantActive)
			}
			if f.Position != tt.wantPos {
				t.Errorf("Position = %+v, want %+v", f.Position, tt.wantPos)
			}
			if in.Dropped() != 1 {
				t.Errorf("Dropped() = %d, want 1", in.Dropped())
			}
		})
	}
}

func TestIngestMonotonicTime(t *testing.T) {
	in := NewIngestor(DefaultConfig())
	in.Ingest(Raw{Time: at(100)})
	snap := in.Ingest(Raw{Time: at(50)})

	if !snap.Time().Equal(at(100)) {
		t.Errorf("Time() = %v, want clamped to %v", snap.Time(), at(100))
	}
	if in.Clamped() != 1 {
		t.Errorf("Clamped() = %d, want 1", in.Clamped())
	}
}

func TestIngestMotion(t *testing.T) {
	in := NewIngestor(DefaultConfig())

	snap := in.Ingest(Raw{Time: at(0)})
	if snap.Motion().Valid {
		t.Error("Motion().Valid = true without motion data")
	}

	snap = in.Ingest(Raw{Time: at(16), Motion: &Motion{Accel: Vec3{Z: 9.81}}})
	m := snap.Motion()
	if !m.Valid || m.Accel.Z != 9.81 {
		t.Errorf("Motion() = %+v, want valid with accel z 9.81", m)
	}
}

func TestSnapshotCopies(t *testing.T) {
	snap := NewSnapshot(1, t0, map[ActionID]ActionState{"a": {Pressed: true}}, []Finger{{Slot: 0, Active: true}}, Motion{})

	fingers := snap.Fingers()
	fingers[0].Active = false
	if f, _ := snap.Finger(0); !f.Active {
		t.Error("mutating Fingers() result changed the snapshot")
	}
}

func TestIngestReset(t *testing.T) {
	in := NewIngestor(DefaultConfig())
	in.Ingest(Raw{Time: at(0), Buttons: map[ActionID]bool{"a": true}})
	in.Reset()

	snap := in.Ingest(Raw{Time: at(16), Buttons: map[ActionID]bool{"a": true}})
	if !snap.Action("a").JustPressed {
		t.Error("held action did not report a press edge after Reset")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"negative deadzone", func(c *Config) { c.AxisDeadzone = -0.1 }, true},
		{"deadzone one", func(c *Config) { c.AxisDeadzone = 1 }, true},
		{"zero threshold", func(c *Config) { c.AxisPressThreshold = 0 }, true},
		{"too many slots", func(c *Config) { c.TouchSlots = MaxTouchSlots + 1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIngestSetConfigKeepsEdges(t *testing.T) {
	in := NewIngestor(DefaultConfig())
	in.Ingest(Raw{Time: at(0), Buttons: map[ActionID]bool{"a": true}})

	cfg := DefaultConfig()
	cfg.TouchSlots = 4
	cfg.Actions = []ActionID{"b"}
	if err := in.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}

	snap := in.Ingest(Raw{Time: at(16), Buttons: map[ActionID]bool{"a": true}})
	if st := snap.Action("a"); !st.Pressed || st.JustPressed {
		t.Errorf("Action(a) = %+v, want held without a new edge", st)
	}
	if len(snap.Fingers()) != 4 {
		t.Errorf("len(Fingers()) = %d, want 4", len(snap.Fingers()))
	}
	found := false
	for _, id := range snap.Actions() {
		if id == "b" {
			found = true
		}
	}
	if !found {
		t.Error("Actions() missing newly configured action b")
	}

	cfg.AxisDeadzone = 2
	if err := in.SetConfig(cfg); err == nil {
		t.Error("SetConfig() error = nil, want error for invalid deadzone")
	}
}
