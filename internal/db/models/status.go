package models

// TimesheetStatus is the approval workflow state of a timesheet entry.
type TimesheetStatus int

const (
	StatusNone TimesheetStatus = iota
	StatusSaved
	StatusSubmitted
	StatusApproved
	StatusRejected
)

var statusNames = map[TimesheetStatus]string{
	StatusNone:      "None",
	StatusSaved:     "Saved",
	StatusSubmitted: "Submitted",
	StatusApproved:  "Approved",
	StatusRejected:  "Rejected",
}

var transitions = map[TimesheetStatus][]TimesheetStatus{
	StatusNone:      {StatusSaved},
	StatusSaved:     {StatusSaved, StatusSubmitted},
	StatusRejected:  {StatusSaved},
	StatusSubmitted: {StatusApproved, StatusRejected},
}

func (s TimesheetStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

func (s TimesheetStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// CanTransitionTo is the single guard for every status mutation.
func (s TimesheetStatus) CanTransitionTo(next TimesheetStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Editable reports whether hours may still be changed by the owner.
func (s TimesheetStatus) Editable() bool {
	return s.CanTransitionTo(StatusSaved)
}

// ParseStatus accepts either the numeric value or the name.
func ParseStatus(v string) (TimesheetStatus, bool) {
	for status, name := range statusNames {
		if name == v {
			return status, true
		}
	}
	if len(v) == 1 && v[0] >= '0' && v[0] <= '4' {
		return TimesheetStatus(v[0] - '0'), true
	}
	return StatusNone, false
}
