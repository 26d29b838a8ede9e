package facematch

// ResultSet partitions comparison filenames by verdict. Both slices are
// always non-nil so they encode as JSON arrays.
type ResultSet struct {
	Matches    []string `json:"matches"`
	NonMatches []string `json:"non_matches"`
}

// Partition folds outcomes into a ResultSet, keeping input order within
// each bucket.
func Partition(outcomes []Outcome) ResultSet {
	rs := ResultSet{
		Matches:    make([]string, 0, len(outcomes)),
		NonMatches: make([]string, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		if o.IsMatch() {
			rs.Matches = append(rs.Matches, o.Filename)
		} else {
			rs.NonMatches = append(rs.NonMatches, o.Filename)
		}
	}
	return rs
}

// Failures counts outcomes that ended in an error.
func Failures(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Kind == OutcomeFailed {
			n++
		}
	}
	return n
}
