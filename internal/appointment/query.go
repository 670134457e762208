package appointment

import "strings"

// StatusAll disables the status filter.
const StatusAll AppointmentStatus = "all"

// Criteria narrows a list view. Zero value matches everything.
type Criteria struct {
	Status     AppointmentStatus // exact match, or "" / "all"
	SearchText string            // case-insensitive substring of patient name or email
}

// Filter returns the appointments matching all criteria, in source order.
// The input slice is never modified.
func Filter(appts []Appointment, c Criteria) []Appointment {
	needle := strings.ToLower(c.SearchText)
	out := make([]Appointment, 0, len(appts))
	for _, a := range appts {
		if c.Status != "" && c.Status != StatusAll && a.Status != c.Status {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(a.PatientName), needle) &&
			!strings.Contains(strings.ToLower(a.Email), needle) {
			continue
		}
		out = append(out, a)
	}
	return out
}
