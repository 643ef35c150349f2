package compliance

import "time"

// Status is the review state of a single artifact.
type Status string

const (
	StatusMissing   Status = "missing"
	StatusSubmitted Status = "submitted"
	StatusVerified  Status = "verified"
	StatusRejected  Status = "rejected"
)

// Artifact is the current submission of one artifact type for one driver.
// A non-missing artifact always carries the storage key of its blob.
type Artifact struct {
	Type         ArtifactType `json:"type" bson:"type"`
	Status       Status       `json:"status" bson:"status"`
	StorageKey   string       `json:"storageKey,omitempty" bson:"storageKey,omitempty"`
	MimeType     string       `json:"mimeType,omitempty" bson:"mimeType,omitempty"`
	OriginalName string       `json:"originalName,omitempty" bson:"originalName,omitempty"`
	SizeBytes    int64        `json:"sizeBytes,omitempty" bson:"sizeBytes,omitempty"`
	Revision     int64        `json:"revision" bson:"revision"`
	SubmittedAt  *time.Time   `json:"submittedAt,omitempty" bson:"submittedAt,omitempty"`
	ReviewedAt   *time.Time   `json:"reviewedAt,omitempty" bson:"reviewedAt,omitempty"`
	URL          string       `json:"url,omitempty" bson:"-"`
}

// Submitted reports whether a blob currently backs the artifact.
func (a Artifact) Submitted() bool {
	return a.Status != StatusMissing && a.Status != "" && a.StorageKey != ""
}

// Record is the per-driver compliance aggregate. Version is bumped on every
// successful save and used for optimistic concurrency by repositories.
type Record struct {
	DriverID  string                    `json:"driverId" bson:"_id"`
	Artifacts map[ArtifactType]Artifact `json:"artifacts" bson:"artifacts"`
	Version   int64                     `json:"version" bson:"version"`
	CreatedAt time.Time                 `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time                 `json:"updatedAt" bson:"updatedAt"`
}

// NewRecord returns an empty record for the driver. It is not persisted.
func NewRecord(driverID string) *Record {
	return &Record{DriverID: driverID, Artifacts: map[ArtifactType]Artifact{}}
}

// Artifact returns the artifact of the given type, or a missing artifact.
func (r *Record) Artifact(t ArtifactType) Artifact {
	if r != nil {
		if a, ok := r.Artifacts[t]; ok && a.Status != "" {
			return a
		}
	}
	return Artifact{Type: t, Status: StatusMissing}
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Artifacts = make(map[ArtifactType]Artifact, len(r.Artifacts))
	for k, v := range r.Artifacts {
		out.Artifacts[k] = v
	}
	return &out
}

// BankInformation is the payout account of a driver.
type BankInformation struct {
	AccountHolderName string    `json:"accountHolderName" bson:"accountHolderName"`
	BankName          string    `json:"bankName" bson:"bankName"`
	IBAN              string    `json:"iban" bson:"iban"`
	BranchCode        string    `json:"branchCode,omitempty" bson:"branchCode,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Fields exposes the record as a name → value map for the field catalog.
func (b BankInformation) Fields() map[string]string {
	return map[string]string{
		"accountHolderName": b.AccountHolderName,
		"bankName":          b.BankName,
		"iban":              b.IBAN,
		"branchCode":        b.BranchCode,
	}
}

// CompanyInformation is the legal entity a driver invoices through.
type CompanyInformation struct {
	CompanyName string    `json:"companyName" bson:"companyName"`
	CompanyType string    `json:"companyType,omitempty" bson:"companyType,omitempty"`
	TaxNumber   string    `json:"taxNumber" bson:"taxNumber"`
	TaxOffice   string    `json:"taxOffice" bson:"taxOffice"`
	Address     string    `json:"address" bson:"address"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

func (c CompanyInformation) Fields() map[string]string {
	return map[string]string{
		"companyName": c.CompanyName,
		"companyType": c.CompanyType,
		"taxNumber":   c.TaxNumber,
		"taxOffice":   c.TaxOffice,
		"address":     c.Address,
	}
}

// ComplianceStatus is the full compliance view of one driver.
type ComplianceStatus struct {
	DriverID    string              `json:"driverId"`
	Artifacts   []Artifact          `json:"artifacts"`
	Bank        *BankInformation    `json:"bank,omitempty"`
	Company     *CompanyInformation `json:"company,omitempty"`
	Eligibility Verdict             `json:"eligibility"`
}
