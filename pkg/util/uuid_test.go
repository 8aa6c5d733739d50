package util

import "testing"

func TestParseUUIDForms(t *testing.T) {
	t.Parallel()

	dashed := "069a79f4-44e9-4726-a5be-fca90e38aaf5"
	undashed := "069a79f444e94726a5befca90e38aaf5"

	a, err := ParseUUID(dashed)
	if err != nil {
		t.Fatalf("dashed form rejected: %v", err)
	}
	b, err := ParseUUID("  " + undashed + " ")
	if err != nil {
		t.Fatalf("undashed form rejected: %v", err)
	}
	if a != b {
		t.Fatalf("forms parse to different ids: %s vs %s", a, b)
	}
	if got := FormatDashed(b); got != dashed {
		t.Fatalf("FormatDashed = %q, want %q", got, dashed)
	}
}

func TestParseUUIDInvalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "notch", "069a79f4-44e9-4726-a5be"} {
		if _, err := ParseUUID(in); err == nil {
			t.Errorf("ParseUUID(%q) succeeded, want error", in)
		}
	}
}
