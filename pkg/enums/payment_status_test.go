package enums

import "testing"

func TestPaymentStatusTerminal(t *testing.T) {
	cases := map[PaymentStatus]bool{
		PaymentStatusPending:   false,
		PaymentStatusCompleted: true,
		PaymentStatusFailed:    true,
		PaymentStatusCancelled: true,
		PaymentStatus("paid"):  false,
	}
	for status, want := range cases {
		if got := status.IsTerminal(); got != want {
			t.Fatalf("%q IsTerminal = %v, want %v", status, got, want)
		}
	}
}

func TestParsePaymentStatusNormalizes(t *testing.T) {
	got, err := ParsePaymentStatus("  Completed ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != PaymentStatusCompleted {
		t.Fatalf("expected completed, got %q", got)
	}
	if _, err := ParsePaymentStatus("settled"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestParseMobileMoneyProvider(t *testing.T) {
	got, err := ParseMobileMoneyProvider("MTN")
	if err != nil || got != MobileMoneyProviderMTN {
		t.Fatalf("expected mtn, got %q err=%v", got, err)
	}
	if _, err := ParseMobileMoneyProvider(""); err == nil {
		t.Fatal("expected error for empty provider")
	}
}
