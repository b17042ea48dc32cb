// Package criteria provides pluggable predicates the proxy send path
// evaluates before a message leaves the process. A message is sent only when
// every registered criterion evaluates true.
package criteria

import "mqproxy/pkg/models"

// SendCriteria decides whether a message may be sent. Implementations must
// be safe for concurrent use; the send path may be driven by many goroutines.
type SendCriteria interface {
	Evaluate(msg *models.Message) bool
}

// Func adapts a plain function to a SendCriteria.
type Func func(msg *models.Message) bool

func (f Func) Evaluate(msg *models.Message) bool { return f(msg) }

// And combines two criteria with logical AND.
func And(a, b SendCriteria) SendCriteria {
	return Func(func(msg *models.Message) bool {
		return a.Evaluate(msg) && b.Evaluate(msg)
	})
}

// Or combines two criteria with logical OR.
func Or(a, b SendCriteria) SendCriteria {
	return Func(func(msg *models.Message) bool {
		return a.Evaluate(msg) || b.Evaluate(msg)
	})
}

// Not negates a criteria.
func Not(c SendCriteria) SendCriteria {
	return Func(func(msg *models.Message) bool {
		return !c.Evaluate(msg)
	})
}

// AlwaysAllow passes every message.
func AlwaysAllow() SendCriteria {
	return Func(func(*models.Message) bool { return true })
}

// AlwaysBlock blocks every message.
func AlwaysBlock() SendCriteria {
	return Func(func(*models.Message) bool { return false })
}
