package game

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefaultRulesValid(t *testing.T) {
	if err := DefaultRules().Validate(); err != nil {
		t.Fatalf("default rules invalid: %v", err)
	}
}

func TestHostileSpawnInterval(t *testing.T) {
	base := DefaultRules()
	highFloor := DefaultRules()
	highFloor.SpawnFloor = 5 * time.Second

	tests := []struct {
		name  string
		rules Rules
		score int
		want  time.Duration
	}{
		{"no score", base, 0, 10 * time.Second},
		{"partial ramp", base, 20, 9 * time.Second},
		{"ramp capped", base, 120, 4 * time.Second},
		{"beyond cap", base, 1000, 4 * time.Second},
		{"floor wins", highFloor, 120, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rules.HostileSpawnInterval(tt.score); got != tt.want {
				t.Errorf("HostileSpawnInterval(%d) = %v, want %v", tt.score, got, tt.want)
			}
		})
	}
}

func TestParseRulesOverlay(t *testing.T) {
	data := []byte(`{
		"cols": 7,
		"starting_currency": 50,
		"spawn_floor_ms": 3000,
		"defenders": {"producer": {"cost": 25, "cooldown_ms": 5000}}
	}`)

	rules, err := ParseRules(data)
	if err != nil {
		t.Fatalf("ParseRules failed: %v", err)
	}
	if rules.Cols != 7 {
		t.Errorf("Cols = %d, want 7", rules.Cols)
	}
	if rules.Lanes != 5 {
		t.Errorf("Lanes should keep default 5, got %d", rules.Lanes)
	}
	if rules.StartingCurrency != 50 {
		t.Errorf("StartingCurrency = %d, want 50", rules.StartingCurrency)
	}
	if rules.SpawnFloor != 3*time.Second {
		t.Errorf("SpawnFloor = %v, want 3s", rules.SpawnFloor)
	}
	p := rules.Defenders[KindProducer]
	if p.Cost != 25 || p.Cooldown != 5*time.Second || p.Health != 80 {
		t.Errorf("producer stats = %+v", p)
	}
	if rules.Defenders[KindAttacker].Cost != 100 {
		t.Error("attacker stats should be untouched")
	}
}

func TestParseRulesRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed json", `{"cols": `},
		{"unknown kind", `{"defenders": {"catapult": {"cost": 1}}}`},
		{"zero lanes", `{"lanes": 0}`},
		{"engage radius too large", `{"engage_radius": 6}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRules([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadRules(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("LoadRules(\"\") failed: %v", err)
	}
	if rules.Cols != DefaultRules().Cols {
		t.Error("empty path should return defaults")
	}

	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte(`{"kill_bonus": 40}`), 0o644); err != nil {
		t.Fatal(err)
	}
	rules, err = LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	if rules.KillBonus != 40 {
		t.Errorf("KillBonus = %d, want 40", rules.KillBonus)
	}

	if _, err := LoadRules(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestRulesJSONLoadsBack(t *testing.T) {
	r := DefaultRules()
	r.Cols = 7
	r.SpawnFloor = 1500 * time.Millisecond
	a := r.Defenders[KindAttacker]
	a.Cost = 80
	r.Defenders[KindAttacker] = a

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParseRules(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, r) {
		t.Errorf("rules changed through JSON:\n got %+v\nwant %+v", got, r)
	}
}
