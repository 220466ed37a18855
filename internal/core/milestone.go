package core

// MilestoneFor returns the highest multiple of step that is <= total.
func MilestoneFor(total, step int64) int64 {
	if step <= 0 || total <= 0 {
		return 0
	}
	return (total / step) * step
}

// AdvanceMilestone recomputes the milestone for the current total. When a new
// threshold is crossed it records it and raises the one-shot flag. Several
// thresholds crossed at once collapse into the highest one.
func (s *LedgerState) AdvanceMilestone() bool {
	candidate := MilestoneFor(s.Total, s.Step)
	if candidate <= s.LastMilestoneAnnounced {
		return false
	}
	s.LastMilestoneAnnounced = candidate
	s.MilestoneJustHit = true
	return true
}
