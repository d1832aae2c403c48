package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		hour    int
		minute  int
		wantErr bool
	}{
		{raw: "08:00", hour: 8},
		{raw: "23:59", hour: 23, minute: 59},
		{raw: "0:5", minute: 5},
		{raw: " 14:30 ", hour: 14, minute: 30},
		{raw: "24:00", wantErr: true},
		{raw: "12:60", wantErr: true},
		{raw: "12", wantErr: true},
		{raw: "ab:cd", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			h, m, err := ParseHHMM(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseHHMM(%q) expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseHHMM(%q) error: %v", tt.raw, err)
			}
			if h != tt.hour || m != tt.minute {
				t.Fatalf("ParseHHMM(%q) = %d:%d, want %d:%d", tt.raw, h, m, tt.hour, tt.minute)
			}
		})
	}
}

func TestDaysNormalize(t *testing.T) {
	t.Parallel()
	got, err := Days{"Fri", "Mon", "Mon", "Sun"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	want := Days{"Sun", "Mon", "Fri"}
	if len(got) != len(want) {
		t.Fatalf("Normalize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Normalize = %v, want %v", got, want)
		}
	}

	if _, err := (Days{"Monday"}).Normalize(); err == nil {
		t.Fatal("expected error for unknown weekday tag")
	}
}

func TestEntryValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		entry   Entry
		wantErr error
	}{
		{name: "valid", entry: Entry{Name: "Aspirin", Time: "08:00", Days: EveryDay()}},
		{name: "inert days ok", entry: Entry{Name: "Aspirin", Time: "08:00"}},
		{name: "empty name", entry: Entry{Name: "  ", Time: "08:00"}, wantErr: ErrEmptyName},
		{name: "bad time", entry: Entry{Name: "Aspirin", Time: "8pm"}, wantErr: ErrInvalidTime},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := (Entry{Name: "Aspirin", Time: "08:00", Days: Days{"Funday"}}).Validate(); err == nil {
		t.Fatal("expected error for unknown weekday")
	}
}

func TestKeys(t *testing.T) {
	t.Parallel()
	// 2024-01-01 was a Monday.
	at := time.Date(2024, 1, 1, 8, 5, 42, 0, time.UTC)
	if got := MinuteKey(at); got != "08:05" {
		t.Fatalf("MinuteKey = %q", got)
	}
	if got := DayTag(at); got != "Mon" {
		t.Fatalf("DayTag = %q", got)
	}
	if got := DateKey(at); got != "2024-01-01" {
		t.Fatalf("DateKey = %q", got)
	}
}
