package compliance

import (
	"fmt"
	"sort"
	"strings"
)

var (
	bankFields    = BankInformation{}.Fields()
	companyFields = CompanyInformation{}.Fields()
)

// FieldCatalog lists which fields of the informational records must be
// populated. It is built once at start-up and never mutated.
type FieldCatalog struct {
	bank    []string
	company []string
}

// DefaultFieldCatalog requires every field except the optional branch code and
// company type.
func DefaultFieldCatalog() FieldCatalog {
	c, _ := NewFieldCatalog(
		[]string{"accountHolderName", "bankName", "iban"},
		[]string{"companyName", "taxNumber", "taxOffice", "address"},
	)
	return c
}

// NewFieldCatalog validates the field names against the record shapes.
func NewFieldCatalog(bank, company []string) (FieldCatalog, error) {
	b, err := normalizeFields("bank", bank, bankFields)
	if err != nil {
		return FieldCatalog{}, err
	}
	c, err := normalizeFields("company", company, companyFields)
	if err != nil {
		return FieldCatalog{}, err
	}
	return FieldCatalog{bank: b, company: c}, nil
}

func normalizeFields(kind string, names []string, known map[string]string) ([]string, error) {
	seen := map[string]bool{}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		if _, ok := known[n]; !ok {
			return nil, fmt.Errorf("unknown %s field %q", kind, n)
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

func (c FieldCatalog) BankFields() []string    { return append([]string(nil), c.bank...) }
func (c FieldCatalog) CompanyFields() []string { return append([]string(nil), c.company...) }

// ValidateBank returns ErrValidation naming every required field left empty.
func (c FieldCatalog) ValidateBank(b BankInformation) error {
	return missingFields("bank", c.bank, b.Fields())
}

func (c FieldCatalog) ValidateCompany(co CompanyInformation) error {
	return missingFields("company", c.company, co.Fields())
}

func missingFields(kind string, required []string, values map[string]string) error {
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(values[f]) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s information missing %s", ErrValidation, kind, strings.Join(missing, ", "))
	}
	return nil
}
