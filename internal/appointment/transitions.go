package appointment

// TransitionPolicy is the status lifecycle table:
//
//	pending   -> confirmed | cancelled
//	confirmed -> completed (| cancelled when AllowConfirmedCancellation)
//
// completed and cancelled are terminal.
type TransitionPolicy struct {
	AllowConfirmedCancellation bool
}

func (p TransitionPolicy) Allowed(from, to AppointmentStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCompleted || (to == StatusCancelled && p.AllowConfirmedCancellation)
	default:
		return false
	}
}

// Next lists the statuses reachable from s, in display order.
func (p TransitionPolicy) Next(s AppointmentStatus) []AppointmentStatus {
	var out []AppointmentStatus
	for _, to := range []AppointmentStatus{StatusConfirmed, StatusCompleted, StatusCancelled} {
		if p.Allowed(s, to) {
			out = append(out, to)
		}
	}
	return out
}
