package logbook

import (
	"testing"
)

func TestComputeProgress(t *testing.T) {
	filled := Entry{Monday: "did things"}
	empty := Entry{}

	tests := []struct {
		name       string
		entries    []Entry
		totalWeeks int
		wantDone   int
		wantPct    float64
	}{
		{name: "no entries", totalWeeks: 24},
		{name: "zero weeks", entries: []Entry{filled}, wantDone: 1},
		{name: "all empty", entries: []Entry{empty, empty}, totalWeeks: 4},
		{name: "half done", entries: []Entry{filled, empty, filled, empty}, totalWeeks: 4, wantDone: 2, wantPct: 50},
		{name: "full", entries: []Entry{filled, filled}, totalWeeks: 2, wantDone: 2, wantPct: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputeProgress(tt.entries, tt.totalWeeks)
			if p.CompletedWeeks != tt.wantDone {
				t.Errorf("CompletedWeeks = %d, want %d", p.CompletedWeeks, tt.wantDone)
			}
			if p.Percent != tt.wantPct {
				t.Errorf("Percent = %v, want %v", p.Percent, tt.wantPct)
			}
		})
	}
}

func TestSortAlertsIsStable(t *testing.T) {
	alerts := []Alert{
		{Code: "a", Priority: alertPriorityLow},
		{Code: "b", Priority: alertPriorityHigh},
		{Code: "c", Priority: alertPriorityLow},
		{Code: "d", Priority: alertPriorityHigh},
	}
	sortAlerts(alerts)

	want := []string{"b", "d", "a", "c"}
	for i, code := range want {
		if alerts[i].Code != code {
			t.Fatalf("alerts[%d].Code = %s, want %s", i, alerts[i].Code, code)
		}
	}
}
