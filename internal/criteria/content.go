package criteria

import (
	"fmt"
	"regexp"
	"strings"

	"mqproxy/internal/canonical"
	"mqproxy/pkg/models"
)

// ContentContains passes messages whose body contains the substring.
func ContentContains(substring string) SendCriteria {
	return Func(func(msg *models.Message) bool {
		return strings.Contains(msg.Body, substring)
	})
}

// ContentMatches passes messages whose body contains a match for the
// pattern; anchor the pattern to require a whole-body match.
func ContentMatches(pattern string) (SendCriteria, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid content pattern: %w", err)
	}
	return Func(func(msg *models.Message) bool {
		return msg.Body != "" && re.MatchString(msg.Body)
	}), nil
}

// ContentStructured passes messages whose body parses as a structured
// document.
func ContentStructured() SendCriteria {
	return Func(func(msg *models.Message) bool {
		return canonical.Valid(msg.Body)
	})
}

// FieldEquals passes messages whose named top-level body field has the given
// textual form.
func FieldEquals(name, value string) SendCriteria {
	return Func(func(msg *models.Message) bool {
		v, ok := canonical.ExtractField(msg.Body, name)
		return ok && v == value
	})
}

// FieldExists passes messages whose body carries the named top-level field.
func FieldExists(name string) SendCriteria {
	return Func(func(msg *models.Message) bool {
		_, ok := canonical.ExtractField(msg.Body, name)
		return ok
	})
}

// ContentMinLength passes messages with a body of at least n bytes.
func ContentMinLength(n int) SendCriteria {
	return Func(func(msg *models.Message) bool {
		return len(msg.Body) >= n
	})
}

// ContentMaxLength passes messages with a body of at most n bytes.
func ContentMaxLength(n int) SendCriteria {
	return Func(func(msg *models.Message) bool {
		return len(msg.Body) <= n
	})
}

// ContentFunc passes messages whose body satisfies the predicate.
func ContentFunc(pred func(body string) bool) SendCriteria {
	return Func(func(msg *models.Message) bool {
		return pred(msg.Body)
	})
}
