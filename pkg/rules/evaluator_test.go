package rules

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/lexinelai/lexinel-oss/pkg/domain"
)

func sampleTx() *domain.Transaction {
	return &domain.Transaction{
		ID:            "TX-1001",
		FromAccount:   "ACCT-111",
		ToAccount:     "ACCT-222",
		Amount:        15000,
		Type:          "wire",
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Country:       "US",
		IsCrossBorder: true,
	}
}

func TestMatches_Clauses(t *testing.T) {
	tests := []struct {
		name string
		tx   *domain.Transaction
		expr string
		want bool
	}{
		{"empty expression matches", sampleTx(), "", true},
		{"amount lower bound holds", sampleTx(), "amount > 10000", true},
		{"amount lower bound equal fails", sampleTx(), "amount > 15000", false},
		{"amount upper bound holds", sampleTx(), "amount < 20000", true},
		{"amount upper bound equal fails", sampleTx(), "amount < 15000", false},
		{"conjunction of bounds", sampleTx(), "amount > 10000 and amount < 20000", true},
		{"country equality holds", sampleTx(), "country = US", true},
		{"country mismatch fails", sampleTx(), "country = RU", false},
		{"country is form", sampleTx(), "country is KY", false},
		{"unknown country token ignored", sampleTx(), "country = ZZ", true},
		{"cross border true holds", sampleTx(), "cross_border = true", true},
		{"cross border false fails", sampleTx(), "cross-border = false", false},
		{"type equality case-insensitive", sampleTx(), "type = WIRE", true},
		{"type mismatch fails", sampleTx(), "type = cash", false},
		{"all clauses together", sampleTx(), "amount > 10000 country = US cross_border = true type = wire", true},
		{"one failing clause fails all", sampleTx(), "amount > 10000 type = cash", false},
		{"garbage expression has no constraints", sampleTx(), "when the moon is full", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.tx, tt.expr); got != tt.want {
				t.Fatalf("Matches(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestMatches_FailClosed(t *testing.T) {
	// Missing country with a country clause fails, it does not error.
	tx := sampleTx()
	tx.Country = ""
	if Matches(tx, "country = US") {
		t.Fatal("expected fail-closed match on missing country")
	}

	// A nil transaction can satisfy nothing.
	if Matches(nil, "") {
		t.Fatal("expected fail-closed match on nil transaction")
	}
	if Matches(nil, "amount > 100") {
		t.Fatal("expected fail-closed match on nil transaction with clause")
	}

	// Malformed numeric bound fails closed rather than matching.
	if Matches(sampleTx(), "amount > 99999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999999") {
		t.Fatal("expected fail-closed match on overflowing bound")
	}
}

func TestMatches_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tx := &domain.Transaction{
			Amount:        rapid.Float64Range(0, 1_000_000).Draw(t, "amount"),
			Country:       rapid.SampledFrom([]string{"US", "CN", "RU", "UK", "KY", ""}).Draw(t, "country"),
			Type:          rapid.SampledFrom([]string{"wire", "cash", "ach", ""}).Draw(t, "type"),
			IsCrossBorder: rapid.Bool().Draw(t, "cross"),
		}
		expr := rapid.SampledFrom([]string{
			"amount > 10000",
			"amount < 500",
			"country = US",
			"country is ru",
			"cross_border = true",
			"cross-border = false",
			"type = wire",
			"amount > 100 and country = KY and type = cash",
			"",
			"completely free-form text",
		}).Draw(t, "expr")

		first := Matches(tx, expr)
		second := Matches(tx, expr)
		if first != second {
			t.Fatalf("Matches not deterministic for %q: %v then %v", expr, first, second)
		}
	})
}

func TestMatches_ArbitraryInputNeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tx := &domain.Transaction{
			Amount:  rapid.Float64().Draw(t, "amount"),
			Country: rapid.StringN(0, 4, 4).Draw(t, "country"),
			Type:    rapid.StringN(0, 8, 8).Draw(t, "type"),
		}
		expr := rapid.String().Draw(t, "expr")
		// Totality: any input yields a boolean, never a panic.
		_ = Matches(tx, expr)
	})
}
