package criteria

import "mqproxy/pkg/models"

// All passes a message only when every sub-criterion passes it.
func All(criteria ...SendCriteria) SendCriteria {
	return Func(func(msg *models.Message) bool {
		for _, c := range criteria {
			if !c.Evaluate(msg) {
				return false
			}
		}
		return true
	})
}

// Any passes a message when at least one sub-criterion passes it.
func Any(criteria ...SendCriteria) SendCriteria {
	return Func(func(msg *models.Message) bool {
		for _, c := range criteria {
			if c.Evaluate(msg) {
				return true
			}
		}
		return false
	})
}

// None passes a message only when no sub-criterion passes it.
func None(criteria ...SendCriteria) SendCriteria {
	return Not(Any(criteria...))
}
