package sync

import (
	"math"
	"testing"

	"github.com/iliyamo/cruise-feed-sync/internal/extractor"
	"github.com/iliyamo/cruise-feed-sync/internal/model"
)

func fp(v float64) *float64 { return &v }

func TestPriceChanged(t *testing.T) {
	prev := &model.PriceSnapshot{
		PriceInterior: fp(450),
		PriceBalcony:  fp(900),
	}

	cases := []struct {
		name string
		prev *model.PriceSnapshot
		next extractor.PriceTuple
		want bool
	}{
		{"first observation", nil, extractor.PriceTuple{Interior: fp(450)}, true},
		{"identical", prev, extractor.PriceTuple{Interior: fp(450), Balcony: fp(900)}, false},
		{"sub-epsilon jitter", prev, extractor.PriceTuple{Interior: fp(450.005), Balcony: fp(900)}, false},
		{"real change", prev, extractor.PriceTuple{Interior: fp(430), Balcony: fp(900)}, true},
		{"category appeared", prev, extractor.PriceTuple{Interior: fp(450), Balcony: fp(900), Suite: fp(2000)}, true},
		{"category vanished", prev, extractor.PriceTuple{Interior: fp(450)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := priceChanged(tc.prev, tc.next); got != tc.want {
				t.Fatalf("priceChanged = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPctChange(t *testing.T) {
	if got := pctChange(fp(500), fp(450)); got == nil || math.Abs(*got-(-10)) > 1e-9 {
		t.Fatalf("expected -10%%, got %v", got)
	}
	if got := pctChange(fp(400), fp(500)); got == nil || math.Abs(*got-25) > 1e-9 {
		t.Fatalf("expected +25%%, got %v", got)
	}
	if pctChange(nil, fp(100)) != nil || pctChange(fp(100), nil) != nil || pctChange(fp(0), fp(100)) != nil {
		t.Fatalf("absent or zero baselines must yield nil")
	}
}

func TestBuildSnapshot(t *testing.T) {
	prev := &model.PriceSnapshot{PriceInterior: fp(500), PriceSuite: fp(2000)}
	next := extractor.PriceTuple{Interior: fp(450), Suite: fp(2000), Balcony: fp(800)}

	s := buildSnapshot(7, next, prev, model.SnapshotSourceWebhook)
	if s.CruiseID != 7 || s.Source != model.SnapshotSourceWebhook {
		t.Fatalf("snapshot identity wrong: %+v", s)
	}
	if s.ChangeInteriorPct == nil || math.Abs(*s.ChangeInteriorPct-(-10)) > 1e-9 {
		t.Fatalf("interior change: got %v, want -10", s.ChangeInteriorPct)
	}
	if s.ChangeSuitePct == nil || *s.ChangeSuitePct != 0 {
		t.Fatalf("unchanged suite should record 0%%, got %v", s.ChangeSuitePct)
	}
	// Balcony had no baseline, so no percentage.
	if s.ChangeBalconyPct != nil {
		t.Fatalf("balcony without baseline must have nil change, got %v", *s.ChangeBalconyPct)
	}

	first := buildSnapshot(7, next, nil, model.SnapshotSourceScheduled)
	if first.ChangeInteriorPct != nil {
		t.Fatalf("first snapshot carries no change percentages")
	}
}
