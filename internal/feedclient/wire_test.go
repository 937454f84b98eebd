package feedclient

import (
	"testing"
	"time"
)

func TestCoerceFloat(t *testing.T) {
	cases := []struct {
		name  string
		in    any
		want  float64
		wantOk bool
	}{
		{"float64", 151.1772, 151.1772, true},
		{"quoted string", "151.1772", 151.1772, true},
		{"bool is unsupported", true, 0, false},
		{"nil is unsupported", nil, 0, false},
		{"malformed string", "not-a-number", 0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := coerceFloat(c.in)
			if ok != c.wantOk {
				t.Fatalf("ok = %v, want %v", ok, c.wantOk)
			}
			if ok && got != c.want {
				t.Fatalf("got %f, want %f", got, c.want)
			}
		})
	}
}

func TestCoerceInt(t *testing.T) {
	t.Run("float64 truncates", func(t *testing.T) {
		got, ok := coerceInt(1234567.0)
		if !ok || got != 1234567 {
			t.Fatalf("got %d ok=%v, want 1234567/true", got, ok)
		}
	})
	t.Run("string", func(t *testing.T) {
		got, ok := coerceInt("42")
		if !ok || got != 42 {
			t.Fatalf("got %d ok=%v, want 42/true", got, ok)
		}
	})
	t.Run("malformed string fails", func(t *testing.T) {
		if _, ok := coerceInt("abc"); ok {
			t.Fatal("expected coercion to fail")
		}
	})
}

func TestCoerceInt64(t *testing.T) {
	got, ok := coerceInt64("123456789012")
	if !ok || got != 123456789012 {
		t.Fatalf("got %d ok=%v", got, ok)
	}
}

func TestCoerceFrequencyHz(t *testing.T) {
	t.Run("string MHz to Hz", func(t *testing.T) {
		got, ok := coerceFrequencyHz("128.150")
		if !ok {
			t.Fatal("expected coercion to succeed")
		}
		if got != 128_150_000 {
			t.Fatalf("got %d, want 128150000", got)
		}
	})
	t.Run("float64 MHz to Hz", func(t *testing.T) {
		got, ok := coerceFrequencyHz(121.5)
		if !ok || got != 121_500_000 {
			t.Fatalf("got %d ok=%v, want 121500000/true", got, ok)
		}
	})
	t.Run("unsupported type fails", func(t *testing.T) {
		if _, ok := coerceFrequencyHz(nil); ok {
			t.Fatal("expected coercion to fail for nil")
		}
	})
}

func TestJoinATIS(t *testing.T) {
	t.Run("plain string", func(t *testing.T) {
		if got := joinATIS("single line"); got != "single line" {
			t.Fatalf("got %q", got)
		}
	})
	t.Run("array of lines joins with newline", func(t *testing.T) {
		got := joinATIS([]any{"line one", "line two"})
		if got != "line one\nline two" {
			t.Fatalf("got %q", got)
		}
	})
	t.Run("unsupported type yields empty string", func(t *testing.T) {
		if got := joinATIS(42); got != "" {
			t.Fatalf("got %q, want empty", got)
		}
	})
}

func TestRawPilotToModelDropsOnMissingCallsign(t *testing.T) {
	p := rawPilot{Callsign: "", LogonTime: "2026-01-01T00:00:00Z", Latitude: 1.0, Longitude: 1.0}
	if _, ok := p.toModel(time.Now()); ok {
		t.Fatal("expected a record with no callsign to be dropped")
	}
}

func TestRawPilotToModelDropsOnBadPosition(t *testing.T) {
	p := rawPilot{Callsign: "QFA1", LogonTime: "2026-01-01T00:00:00Z", Latitude: "not-a-number", Longitude: 1.0}
	if _, ok := p.toModel(time.Now()); ok {
		t.Fatal("expected a record with an uncoercible latitude to be dropped")
	}
}

func TestRawPilotToModelKeepsValidRecord(t *testing.T) {
	p := rawPilot{
		Callsign: "QFA1", LogonTime: "2026-01-01T00:00:00Z",
		Latitude: "151.1772", Longitude: -33.9461,
		Altitude: 5000.0, Groundspeed: "250",
	}
	m, ok := p.toModel(time.Now())
	if !ok {
		t.Fatal("expected a valid record to be kept")
	}
	if m.Callsign != "QFA1" {
		t.Fatalf("got callsign %q", m.Callsign)
	}
	if m.GroundspeedKt != 250 {
		t.Fatalf("got groundspeed %f, want 250", m.GroundspeedKt)
	}
}

func TestRawControllerToModelDropsOnBadFrequency(t *testing.T) {
	c := rawController{Callsign: "SY_TWR", Frequency: nil}
	if _, ok := c.toModel(time.Now()); ok {
		t.Fatal("expected a record with no coercible frequency to be dropped")
	}
}

func TestRawControllerToModelKeepsValidRecord(t *testing.T) {
	c := rawController{
		Callsign: "SY_TWR", Frequency: "120.500",
		Facility: 3.0, Rating: 5.0,
		LogonTime: "2026-01-01T00:00:00Z",
	}
	m, ok := c.toModel(time.Now())
	if !ok {
		t.Fatal("expected a valid record to be kept")
	}
	if m.FrequencyHz != 120_500_000 {
		t.Fatalf("got frequency %d, want 120500000", m.FrequencyHz)
	}
	if m.Facility != 3 {
		t.Fatalf("got facility %d, want 3", m.Facility)
	}
}
