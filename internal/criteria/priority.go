package criteria

import "mqproxy/pkg/models"

// PriorityAtLeast passes messages with priority >= min.
func PriorityAtLeast(min int) SendCriteria {
	return PriorityRange(min, 9)
}

// PriorityAtMost passes messages with priority <= max.
func PriorityAtMost(max int) SendCriteria {
	return PriorityRange(0, max)
}

// PriorityExactly passes messages with exactly the given priority.
func PriorityExactly(p int) SendCriteria {
	return PriorityRange(p, p)
}

// PriorityRange passes messages whose priority falls in [min, max].
func PriorityRange(min, max int) SendCriteria {
	return Func(func(msg *models.Message) bool {
		return msg.Priority >= min && msg.Priority <= max
	})
}
