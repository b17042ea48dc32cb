package criteria

import (
	"fmt"
	"regexp"
	"strings"

	"mqproxy/pkg/models"
)

// PropertyExists passes messages carrying the named property.
func PropertyExists(name string) SendCriteria {
	return Func(func(msg *models.Message) bool {
		return msg.HasProperty(name)
	})
}

// PropertyEquals passes messages whose named string property equals value.
func PropertyEquals(name, value string) SendCriteria {
	return Func(func(msg *models.Message) bool {
		v, ok := msg.Properties[name].(string)
		return ok && v == value
	})
}

// PropertyIn passes messages whose named string property is one of values.
func PropertyIn(name string, values ...string) SendCriteria {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return Func(func(msg *models.Message) bool {
		v, ok := msg.Properties[name].(string)
		if !ok {
			return false
		}
		_, ok = set[v]
		return ok
	})
}

// PropertyMatches passes messages whose named string property matches the
// pattern.
func PropertyMatches(name, pattern string) (SendCriteria, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid property pattern: %w", err)
	}
	return Func(func(msg *models.Message) bool {
		v, ok := msg.Properties[name].(string)
		return ok && re.MatchString(v)
	}), nil
}

// PropertyStartsWith passes messages whose named string property starts with
// prefix.
func PropertyStartsWith(name, prefix string) SendCriteria {
	return Func(func(msg *models.Message) bool {
		v, ok := msg.Properties[name].(string)
		return ok && strings.HasPrefix(v, prefix)
	})
}

// PropertyContains passes messages whose named string property contains the
// substring.
func PropertyContains(name, substring string) SendCriteria {
	return Func(func(msg *models.Message) bool {
		v, ok := msg.Properties[name].(string)
		return ok && strings.Contains(v, substring)
	})
}
