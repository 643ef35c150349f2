package compliance

import (
	"errors"
	"strings"
	"testing"
)

func TestFieldCatalog_Validate(t *testing.T) {
	c := DefaultFieldCatalog()

	full := BankInformation{AccountHolderName: "Ada Driver", BankName: "Ziraat", IBAN: "TR000000000000000000000000"}
	if err := c.ValidateBank(full); err != nil {
		t.Fatalf("expected valid bank info, got %v", err)
	}

	err := c.ValidateBank(BankInformation{AccountHolderName: "Ada Driver", IBAN: "  "})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "bankName") || !strings.Contains(err.Error(), "iban") {
		t.Fatalf("error should list missing fields: %v", err)
	}

	if err := c.ValidateCompany(CompanyInformation{CompanyName: "Ada Lojistik", TaxNumber: "1234567890", TaxOffice: "Kadikoy", Address: "Istanbul"}); err != nil {
		t.Fatalf("expected valid company info, got %v", err)
	}
}

func TestNewFieldCatalog_UnknownField(t *testing.T) {
	if _, err := NewFieldCatalog([]string{"iban", "swift"}, nil); err == nil {
		t.Fatalf("expected error for unknown bank field")
	}
	c, err := NewFieldCatalog([]string{" iban ", "iban", ""}, []string{"taxNumber"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.BankFields(); len(got) != 1 || got[0] != "iban" {
		t.Fatalf("unexpected bank fields: %v", got)
	}
}
