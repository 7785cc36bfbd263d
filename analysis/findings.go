package analysis

type FindingKind string

const (
	SemanticSecurity FindingKind = "semantic-security"
	LowEntropy       FindingKind = "low-entropy"
	Undecodable      FindingKind = "undecodable"
)

type Severity int

const (
	Info Severity = iota
	Warning
	High
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case High:
		return "HIGH"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Finding is something in the report worth a reader's attention. Findings never fail a run.
type Finding struct {
	Kind       FindingKind
	Severity   Severity
	Duplicates int
	Message    string
}

// duplicateSeverity grows with the share of identical plaintexts whose ciphertext repeated.
func duplicateSeverity(u Uniqueness) Severity {
	if u.Duplicates == 0 || u.Total == 0 {
		return Info
	}
	share := float64(u.Duplicates) / float64(u.Total)
	switch {
	case share >= 0.10:
		return Critical
	case share >= 0.01:
		return High
	default:
		return Warning
	}
}

// Worst returns the highest severity among the findings, and false when there are none.
func (r Report) Worst() (Severity, bool) {
	if len(r.Findings) == 0 {
		return Info, false
	}
	worst := r.Findings[0].Severity
	for _, f := range r.Findings[1:] {
		if f.Severity > worst {
			worst = f.Severity
		}
	}
	return worst, true
}
