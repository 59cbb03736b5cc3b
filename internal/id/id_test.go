package id

import "testing"

func TestParseValid(t *testing.T) {
	cases := []string{
		"foo/1.0.0",
		"example.com/foo/1.0.0",
		"example.com/a/long/path/foo/1.0.0",
		"example.com/foo/1.0.0-rc.1",
	}
	for _, c := range cases {
		if _, err := Parse(c); err != nil {
			t.Errorf("Parse(%q) returned error: %v", c, err)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []string{"foo/", "1.0.0", "", "foo"}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", c)
		}
	}
}

func TestShaIsStableAndHex(t *testing.T) {
	a, err := Parse("foo/1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse("foo/1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if a.Sha() != b.Sha() {
		t.Fatalf("expected stable sha, got %q and %q", a.Sha(), b.Sha())
	}
	for _, r := range a.Sha() {
		if !strings_ContainsRune("0123456789abcdef", r) {
			t.Fatalf("sha contains non-hex character: %q", a.Sha())
		}
	}
}

func strings_ContainsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}

func TestDifferentVersionsDifferentSha(t *testing.T) {
	a, _ := Parse("foo/1.0.0")
	b, _ := Parse("foo/1.0.1")
	if a.Sha() == b.Sha() {
		t.Fatal("expected different shas for different versions")
	}
}
