package tracker

import "github.com/angelmondragon/paytrack/pkg/enums"

type mergeOutcome int

const (
	mergeIgnore mergeOutcome = iota
	mergeTransition
	mergeAnomaly
)

const (
	resultTransition = "transition"
	resultIgnored    = "ignored"
	resultStale      = "stale"
	resultAnomaly    = "anomaly"
)

// merge decides what an incoming status means against the last observed one.
// A settled payment never moves again: any different report is an anomaly.
func merge(last, next enums.PaymentStatus) mergeOutcome {
	switch {
	case !next.IsValid(), last == next:
		return mergeIgnore
	case last.IsTerminal():
		return mergeAnomaly
	default:
		return mergeTransition
	}
}
