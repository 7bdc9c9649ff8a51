package strutil

import "testing"

func TestNormalize(t *testing.T) {
	if got := Normalize("  Hello   WORLD "); got != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", got)
	}
}

func TestNormalizeSubject(t *testing.T) {
	cases := map[string]string{
		"Re: Hello":           "hello",
		"RE: FWD: Re: Hello":  "hello",
		"Fw: quarterly plan":  "quarterly plan",
		"  Plain   subject  ": "plain subject",
		"":                    "",
	}
	for in, want := range cases {
		if got := NormalizeSubject(in); got != want {
			t.Fatalf("NormalizeSubject(%q) = %q, want %q", in, got, want)
		}
	}
}
