package scheduler

import "time"

// RemoveReserved drops every candidate whose local day and hour is already held by one
// of the reserved start times. Candidate order is preserved.
func RemoveReserved(candidates []Slot, reserved []time.Time) []Slot {
	if len(candidates) == 0 {
		return nil
	}
	if len(reserved) == 0 {
		out := make([]Slot, len(candidates))
		copy(out, candidates)
		return out
	}

	loc := candidates[0].Start.Location()
	taken := make(map[string]struct{}, len(reserved))
	for _, start := range reserved {
		taken[hourKey(start.In(loc))] = struct{}{}
	}

	out := make([]Slot, 0, len(candidates))
	for _, slot := range candidates {
		if _, ok := taken[hourKey(slot.Start)]; ok {
			continue
		}
		out = append(out, slot)
	}
	return out
}

// StartingFrom drops every slot that starts before earliest.
func StartingFrom(slots []Slot, earliest time.Time) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, slot := range slots {
		if slot.Start.Before(earliest) {
			continue
		}
		out = append(out, slot)
	}
	return out
}

// Without drops the slot starting at the given local hour.
func Without(slots []Slot, hour int) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, slot := range slots {
		if slot.Hour == hour {
			continue
		}
		out = append(out, slot)
	}
	return out
}

// Contains reports whether a slot with the given local hour is present.
func Contains(slots []Slot, hour int) (Slot, bool) {
	for _, slot := range slots {
		if slot.Hour == hour {
			return slot, true
		}
	}
	return Slot{}, false
}

func hourKey(t time.Time) string {
	return t.Format("2006-01-02T15")
}
