package config

import (
	"math/big"
	"testing"
)

func TestParseDepositCeiling(t *testing.T) {
	unlimited := new(big.Int).Lsh(big.NewInt(1), 256)

	got, err := ParseDepositCeiling("max", unlimited)
	if err != nil {
		t.Fatalf("max: %v", err)
	}
	if got.Cmp(unlimited) != 0 {
		t.Fatalf("max should return the unlimited sentinel")
	}

	got, err = ParseDepositCeiling("", unlimited)
	if err != nil {
		t.Fatalf("empty: %v", err)
	}
	if got.Cmp(unlimited) != 0 {
		t.Fatalf("empty should return the unlimited sentinel")
	}

	got, err = ParseDepositCeiling("1000000000000000000", unlimited)
	if err != nil {
		t.Fatalf("numeric: %v", err)
	}
	if got.String() != "1000000000000000000" {
		t.Fatalf("numeric mismatch: %s", got)
	}

	if _, err := ParseDepositCeiling("-5", unlimited); err == nil {
		t.Fatalf("expected error for negative ceiling")
	}
	if _, err := ParseDepositCeiling("abc", unlimited); err == nil {
		t.Fatalf("expected error for garbage")
	}
}
