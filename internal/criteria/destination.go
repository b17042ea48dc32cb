package criteria

import (
	"fmt"
	"regexp"
	"strings"

	"mqproxy/pkg/models"
)

// DestinationEquals passes messages addressed to one of the named
// destinations. With no names, any non-empty destination passes.
func DestinationEquals(names ...string) SendCriteria {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return Func(func(msg *models.Message) bool {
		if msg.Destination == "" {
			return false
		}
		if len(set) == 0 {
			return true
		}
		_, ok := set[msg.Destination]
		return ok
	})
}

// DestinationPrefix passes messages whose destination starts with prefix.
func DestinationPrefix(prefix string) SendCriteria {
	return Func(func(msg *models.Message) bool {
		return msg.Destination != "" && strings.HasPrefix(msg.Destination, prefix)
	})
}

// DestinationMatches passes messages whose destination matches the pattern.
func DestinationMatches(pattern string) (SendCriteria, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid destination pattern: %w", err)
	}
	return Func(func(msg *models.Message) bool {
		return msg.Destination != "" && re.MatchString(msg.Destination)
	}), nil
}

// DestinationExclude blocks messages addressed to any of the named
// destinations. Messages without a destination pass.
func DestinationExclude(names ...string) SendCriteria {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return Func(func(msg *models.Message) bool {
		_, excluded := set[msg.Destination]
		return !excluded
	})
}
