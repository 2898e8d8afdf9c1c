package plan

// ApplyLimit adjusts the row cap of the outermost row-producing plan in seq.
//
// Plans are inspected last to first and only the first one with a table set
// is touched. A plan without a limit gets callerLimit, or defaultLimit when
// the caller gave none; zero means no cap. A plan that already has a limit
// keeps its offset and takes callerLimit as its count, if one was given.
// Scalar expressions are never limited.
func ApplyLimit(seq Sequence, scalar bool, callerLimit *int64, defaultLimit int64) {
	if scalar {
		return
	}

	for i := len(seq) - 1; i >= 0; i-- {
		p := seq[i]
		if p.TableSet() == "" {
			continue
		}

		current := p.RowLimit()
		if current == nil {
			n := defaultLimit
			if callerLimit != nil && *callerLimit != 0 {
				n = *callerLimit
			}
			if n != 0 {
				p.SetRowLimit(&Limit{N: n, Offset: 0})
			}
		} else if callerLimit != nil {
			p.SetRowLimit(&Limit{N: *callerLimit, Offset: current.Offset})
		}
		return
	}
}
