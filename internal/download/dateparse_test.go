package download

import "testing"

func TestParseDateTimeFormats(t *testing.T) {
	cases := []string{
		"03 Sep 2025 18:00:00",
		"2025-09-03 18:00:00",
		"2025-09-03",
		"03 Sep 2025",
	}
	for _, c := range cases {
		if _, err := ParseDateTime(c); err != nil {
			t.Errorf("ParseDateTime(%q): %v", c, err)
		}
	}
}

func TestParseDateTimeRejectsGarbage(t *testing.T) {
	if _, err := ParseDateTime("not a date"); err == nil {
		t.Fatal("expected an error for an unparsable string")
	}
}

func TestFormatCanonicalRoundTrip(t *testing.T) {
	t1, err := ParseDateTime("2025-09-03 18:00:00")
	if err != nil {
		t.Fatalf("ParseDateTime: %v", err)
	}
	if got := FormatCanonical(t1); got != "03 Sep 2025 18:00:00" {
		t.Fatalf("FormatCanonical = %q, want %q", got, "03 Sep 2025 18:00:00")
	}
}
