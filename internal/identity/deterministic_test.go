package identity

import (
	"testing"

	"github.com/google/uuid"
)

func TestCultureVersionUUIDIsStable(t *testing.T) {
	node := uuid.MustParse("0f5d3c2e-94a1-4b77-8a3a-6f7d0f9a1c10")

	a := CultureVersionUUID(node, "en-us")
	b := CultureVersionUUID(node, " en_US ")
	if a != b {
		t.Fatalf("expected normalized cultures to share an id: %s vs %s", a, b)
	}
	if a == CultureVersionUUID(node, "de-DE") {
		t.Fatal("different cultures must not collide")
	}
	if a == uuid.Nil {
		t.Fatal("expected non-nil id")
	}
}

func TestUUIDBlankKey(t *testing.T) {
	if got := UUID("   "); got != uuid.Nil {
		t.Fatalf("expected nil uuid, got %s", got)
	}
}

func TestCultureCode(t *testing.T) {
	cases := map[string]string{
		"en":     "en",
		"EN-us":  "en-US",
		"de_de":  "de-DE",
		" fr-ca": "fr-CA",
	}
	for in, want := range cases {
		if got := CultureCode(in); got != want {
			t.Fatalf("CultureCode(%q) = %q, want %q", in, got, want)
		}
	}
}
