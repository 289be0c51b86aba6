package timestamp

import (
	"testing"
	"time"
)

func TestNowIsMilliseconds(t *testing.T) {
	ts := Now()
	// Current epoch milliseconds are well above 1e12
	if ts < 1e12 {
		t.Errorf("Now() = %d, expected millisecond magnitude", ts)
	}
}

func TestRoundTrip(t *testing.T) {
	orig := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	ms := ToUnixMs(orig)
	back := FromUnixMs(ms)
	if !back.Equal(orig) {
		t.Errorf("round trip: %v != %v", back, orig)
	}
}

func TestZeroValues(t *testing.T) {
	if ToUnixMs(time.Time{}) != 0 {
		t.Error("zero time should map to 0")
	}
	if !FromUnixMs(0).IsZero() {
		t.Error("0 should map to zero time")
	}
	if Format(0) != "" {
		t.Error("Format(0) should be empty")
	}
	if !IsZero(0) || IsZero(1) {
		t.Error("IsZero misbehaves")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  int64
	}{
		{"nil", nil, 0},
		{"zero int64", int64(0), 0},
		{"milliseconds", int64(1672574400000), 1672574400000},
		{"seconds", int64(1672574400), 1672574400000},
		{"float seconds", float64(1672574400), 1672574400000},
		{"rfc3339", "2023-01-01T12:00:00Z", 1672574400000},
		{"numeric string ms", "1672574400000", 1672574400000},
		{"numeric string s", "1672574400", 1672574400000},
		{"empty string", "", 0},
		{"garbage", "not a time", 0},
		{"unsupported type", struct{}{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.input); got != tt.want {
				t.Errorf("Parse(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseTimeValue(t *testing.T) {
	now := time.Now()
	if got := Parse(now); got != now.UnixMilli() {
		t.Errorf("Parse(time.Time) = %d, want %d", got, now.UnixMilli())
	}
}

func TestMax(t *testing.T) {
	tests := []struct {
		a, b, want int64
	}{
		{100, 200, 200},
		{200, 100, 200},
		{0, 100, 100},
		{100, 0, 100},
		{0, 0, 0},
		{100, 100, 100},
	}
	for _, tt := range tests {
		if got := Max(tt.a, tt.b); got != tt.want {
			t.Errorf("Max(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestBetween(t *testing.T) {
	if Between(0, 1000) != 0 {
		t.Error("zero start should yield 0")
	}
	if got := Between(1000, 6000); got != 5*time.Second {
		t.Errorf("Between = %v, want 5s", got)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(Now()); err != nil {
		t.Errorf("current time should validate: %v", err)
	}
	if err := Validate(-1); err == nil {
		t.Error("negative timestamp should fail")
	}
	if err := Validate(40000000000000); err == nil {
		t.Error("far-future timestamp should fail")
	}
}
