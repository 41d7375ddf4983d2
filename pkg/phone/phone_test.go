package phone

import "testing"

func TestSanitize(t *testing.T) {
	valid := map[string]string{
		"+254712345678":    "254712345678",
		"254712345678":     "254712345678",
		"0712345678":       "254712345678",
		"712345678":        "254712345678",
		"0112 345 678":     "254112345678",
		" +254-712-345678": "254712345678",
	}
	for in, want := range valid {
		got, err := Sanitize(in)
		if err != nil {
			t.Fatalf("Sanitize(%q): unexpected error %v", in, err)
		}
		if got != want {
			t.Fatalf("Sanitize(%q): expected %s, got %s", in, want, got)
		}
	}

	for _, in := range []string{"", "12345", "0212345678", "2547123456789", "abc"} {
		if _, err := Sanitize(in); err != ErrInvalidPhone {
			t.Fatalf("Sanitize(%q): expected ErrInvalidPhone, got %v", in, err)
		}
	}
}

func TestMatches(t *testing.T) {
	if !Matches("0712345678", "254712345678") {
		t.Fatalf("expected match")
	}
	if Matches("0712345679", "254712345678") {
		t.Fatalf("unexpected match")
	}
	if Matches("ACC-1", "254712345678") {
		t.Fatalf("non-phone reference should not match")
	}
}
