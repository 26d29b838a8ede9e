package facematch

// OutcomeKind classifies the result of verifying one comparison image.
type OutcomeKind int

const (
	OutcomeVerified OutcomeKind = iota
	OutcomeRejected
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeVerified:
		return "verified"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the typed result for a single comparison. Err is set only for
// OutcomeFailed.
type Outcome struct {
	Filename string
	Kind     OutcomeKind
	Distance float64
	Err      error
}

func Verified(filename string, distance float64) Outcome {
	return Outcome{Filename: filename, Kind: OutcomeVerified, Distance: distance}
}

func Rejected(filename string, distance float64) Outcome {
	return Outcome{Filename: filename, Kind: OutcomeRejected, Distance: distance}
}

func Failed(filename string, err error) Outcome {
	return Outcome{Filename: filename, Kind: OutcomeFailed, Err: err}
}

// IsMatch reports whether the outcome belongs in the matches bucket.
// Failures count as non-matches.
func (o Outcome) IsMatch() bool {
	return o.Kind == OutcomeVerified
}
