package asset_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dapp-bridge/internal/asset"
)

var sim = asset.NewAssetWithName(
	common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"), "SIM", "Simulation Token", 18)

func TestAmount_Formatted(t *testing.T) {
	raw, _ := new(big.Int).SetString("12500000000000000000", 10)
	amt := asset.NewAmount(sim, raw)

	if amt.Formatted() != "12.5" {
		t.Errorf("Formatted() = %s, want 12.5", amt.Formatted())
	}
	if amt.String() != "12.5 SIM" {
		t.Errorf("String() = %s", amt.String())
	}
	if amt.StringFixed(2) != "12.50 SIM" {
		t.Errorf("StringFixed() = %s", amt.StringFixed(2))
	}
	if !amt.ToDecimal().Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("ToDecimal() = %s", amt.ToDecimal())
	}
}

func TestParseString(t *testing.T) {
	tests := []struct {
		input   string
		wantRaw string
		wantErr error
	}{
		{"1", "1000000000000000000", nil},
		{"0.000000000000000001", "1", nil},
		{"2.5", "2500000000000000000", nil},
		{"0.0000000000000000001", "", asset.ErrTooManyDecimals},
		{"-1", "", asset.ErrNegativeAmount},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			amt, err := asset.ParseString(sim, tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if amt.Raw().String() != tt.wantRaw {
				t.Errorf("Raw() = %s, want %s", amt.Raw(), tt.wantRaw)
			}
		})
	}

	if _, err := asset.ParseString(sim, "abc"); err == nil {
		t.Error("expected error for non-numeric input")
	}
}

func TestAmount_Cmp(t *testing.T) {
	one := asset.NewAmount(sim, big.NewInt(1))
	two := asset.NewAmount(sim, big.NewInt(2))

	if c, err := one.Cmp(two); err != nil || c != -1 {
		t.Fatalf("Cmp() = %d, %v", c, err)
	}

	other := asset.NewAsset(common.HexToAddress("0x01"), "USDC", 6)
	if _, err := one.Cmp(asset.Zero(other)); !errors.Is(err, asset.ErrAssetMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestAmount_RawIsCopy(t *testing.T) {
	amt := asset.NewAmount(sim, big.NewInt(10))
	amt.Raw().SetInt64(99)
	if amt.Raw().Int64() != 10 {
		t.Fatal("Raw() must return a copy")
	}
}
