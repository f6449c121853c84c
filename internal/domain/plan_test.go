package domain

import (
	"errors"
	"testing"
)

func TestParsePlan(t *testing.T) {
	p, err := ParsePlan(" Scholar ")
	if err != nil || p != PlanScholar {
		t.Fatalf("ParsePlan = %q, %v", p, err)
	}
	if _, err := ParsePlan("platinum"); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
	if PlanGenius.Title() != "Genius" {
		t.Fatalf("title = %q", PlanGenius.Title())
	}
}

func TestPriceListMatches(t *testing.T) {
	prices := DefaultPrices()
	if !prices.Matches(PlanScholar, 499) {
		t.Fatalf("scholar 499 should match")
	}
	if prices.Matches(PlanScholar, 990) || prices.Matches(PlanFree, 0) {
		t.Fatalf("unexpected match")
	}
}

func TestNormalizeMedium(t *testing.T) {
	cases := map[string]string{"si": MediumSinhala, "English": MediumEnglish, " ta ": MediumTamil, "fr": ""}
	for in, want := range cases {
		if got := NormalizeMedium(in); got != want {
			t.Fatalf("NormalizeMedium(%q) = %q, want %q", in, got, want)
		}
	}
}
