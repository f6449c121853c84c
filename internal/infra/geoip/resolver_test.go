package geoip

import (
	"errors"
	"testing"
)

func TestNewResolverEmptyPath(t *testing.T) {
	r, err := NewResolver("  ")
	if err != nil || r != nil {
		t.Fatalf("NewResolver(empty) = %v, %v", r, err)
	}
	if LookupFunc(r) != nil {
		t.Fatal("nil resolver should give nil lookup")
	}
	if _, err := r.CountryCode("1.1.1.1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("CountryCode on nil = %v", err)
	}
}

func TestNewResolverMissingFile(t *testing.T) {
	if _, err := NewResolver("/nonexistent/GeoLite2-Country.mmdb"); err == nil {
		t.Fatal("expected open error")
	}
}

func TestStaticLookup(t *testing.T) {
	lookup := LookupFunc(Static{"203.0.113.9": "lk"})
	got, err := lookup("203.0.113.9")
	if err != nil || got != "LK" {
		t.Fatalf("lookup = %q, %v", got, err)
	}
	got, _ = lookup("198.51.100.1")
	if got != "" {
		t.Fatalf("unknown ip = %q", got)
	}
}
