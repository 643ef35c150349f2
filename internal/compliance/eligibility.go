package compliance

// Verdict is the derived eligibility of a driver. It is never stored.
type Verdict struct {
	Eligible          bool          `json:"eligible"`
	UnmetRequirements []Requirement `json:"unmetRequirements"`
}

// Snapshot is the state the evaluator reads. Bank and company are satisfied by
// presence only.
type Snapshot struct {
	Record     *Record
	HasBank    bool
	HasCompany bool
}

// Evaluate computes the eligibility verdict. A paired artifact is satisfied
// only when both sides are verified; unmet requirements are listed in registry
// order followed by bank and company.
func Evaluate(reg *Registry, s Snapshot) Verdict {
	unmet := []Requirement{}
	for _, t := range reg.RequiredForEligibility() {
		if !satisfied(reg, s.Record, t) {
			unmet = append(unmet, Requirement(t))
		}
	}
	if !s.HasBank {
		unmet = append(unmet, RequirementBank)
	}
	if !s.HasCompany {
		unmet = append(unmet, RequirementCompany)
	}
	return Verdict{Eligible: len(unmet) == 0, UnmetRequirements: unmet}
}

func satisfied(reg *Registry, rec *Record, t ArtifactType) bool {
	if rec.Artifact(t).Status != StatusVerified {
		return false
	}
	if pair, ok := reg.PairOf(t); ok {
		return rec.Artifact(pair).Status == StatusVerified
	}
	return true
}
