package personalid

import "testing"

func TestValidateBSN(t *testing.T) {
	cases := []struct {
		name string
		bsn  string
		want bool
	}{
		{"known valid", "123456782", true},
		{"all zero", "000000000", true},
		{"wrong length", "12345", false},
		{"non digit", "12345678a", false},
		{"known invalid checksum", "123456789", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateBSN(tc.bsn); got != tc.want {
				t.Errorf("ValidateBSN(%q) = %v, want %v", tc.bsn, got, tc.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	pid, err := New("NL", "bsn", "123456782")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s := pid.String()
	if s != "NL:bsn:123456782" {
		t.Fatalf("unexpected canonical string: %q", s)
	}

	parsed, err := FromString(s)
	if err != nil {
		t.Fatalf("FromString: %v", err)
	}
	if parsed != pid {
		t.Fatalf("round trip mismatch: %+v != %+v", parsed, pid)
	}

	d := pid.AsDict()
	fromD, err := FromDict(d)
	if err != nil {
		t.Fatalf("FromDict: %v", err)
	}
	if fromD != pid {
		t.Fatalf("dict round trip mismatch: %+v != %+v", fromD, pid)
	}
}

func TestNewRejectsPipeCharacter(t *testing.T) {
	if _, err := New("NL", "bsn", "123|456"); err == nil {
		t.Fatal("expected error for id_number containing '|'")
	}
}

func TestNewRejectsBadCountryCode(t *testing.T) {
	if _, err := New("N", "bsn", "123456782"); err == nil {
		t.Fatal("expected error for short country code")
	}
	if _, err := New("N1", "bsn", "123456782"); err == nil {
		t.Fatal("expected error for non-alpha country code")
	}
}

func TestNewRejectsUnsupportedIDType(t *testing.T) {
	if _, err := New("NL", "ssn", "123456782"); err == nil {
		t.Fatal("expected error for unsupported id_type")
	}
}
