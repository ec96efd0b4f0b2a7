package store

import (
	"testing"

	"github.com/Fetrelo/safe-delivery-tfm/pkg/ledger"
)

func TestParseStatusFilter(t *testing.T) {
	cases := []struct {
		in   string
		want int16
	}{
		{"", -1},
		{"pending", 0},
		{"Approved", 1},
		{"REJECTED", 2},
	}
	for _, c := range cases {
		got, err := ParseStatusFilter(c.in)
		if err != nil {
			t.Fatalf("ParseStatusFilter(%q) error: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseStatusFilter(%q) = %d, want %d", c.in, got, c.want)
		}
	}
	if _, err := ParseStatusFilter("everything"); err == nil {
		t.Fatalf("unknown filter must fail")
	}
}

func TestFromLedgerLowercasesAddress(t *testing.T) {
	a := FromLedger(ledger.Actor{
		Address:        "0xAbCdEF0123456789abcdef0123456789ABCDEF01",
		Name:           "Depot",
		Role:           ledger.RoleHub,
		IsActive:       true,
		ApprovalStatus: ledger.ApprovalApproved,
	})
	if a.Address != "0xabcdef0123456789abcdef0123456789abcdef01" {
		t.Fatalf("address not lowercased: %s", a.Address)
	}
	if a.DisplayAddress != "0xAbCdEF0123456789abcdef0123456789ABCDEF01" {
		t.Fatalf("display casing lost: %s", a.DisplayAddress)
	}
	if a.Role != int16(ledger.RoleHub) || a.ApprovalStatus != int16(ledger.ApprovalApproved) {
		t.Fatalf("enum mapping: %+v", a)
	}
}
