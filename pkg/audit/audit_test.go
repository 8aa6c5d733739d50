package audit

import (
	"testing"
)

func TestEntryString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Entry
		want string
	}{
		{
			name: "full",
			in: Entry{
				Action: "ban", Subject: "Notch", Actor: "12345", Description: "griefing",
				Metadata: map[string]string{"until": "never", "count": "3"},
			},
			want: "ban — Notch — 12345 — griefing [count=3 until=never]",
		},
		{
			name: "sparse",
			in:   Entry{Action: "audit", Description: "hello"},
			want: "audit — hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.in.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDispatcherReceivesEntries(t *testing.T) {
	t.Parallel()

	l := NewLogger()
	var got []Entry
	l.SetDispatcher(func(e Entry) { got = append(got, e) })

	l.Event("warn", "Notch", "1", "spam", nil)
	l.Message("just text")

	if len(got) != 2 {
		t.Fatalf("dispatcher saw %d entries, want 2", len(got))
	}
	if got[0].Action != "warn" || got[1].Action != "audit" {
		t.Fatalf("unexpected actions: %q, %q", got[0].Action, got[1].Action)
	}
	if got[0].At.IsZero() {
		t.Fatal("At was not stamped")
	}
}

func TestDispatcherPanicIsContained(t *testing.T) {
	t.Parallel()

	l := NewLogger()
	l.SetDispatcher(func(Entry) { panic("sink down") })

	// Must not propagate.
	l.Message("still fine")

	l.SetDispatcher(nil)
	l.Message("no dispatcher either")
}
