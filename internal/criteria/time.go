package criteria

import (
	"time"

	"golang.org/x/time/rate"

	"mqproxy/pkg/models"
)

// DuringHours passes messages only between startHour (inclusive) and endHour
// (exclusive), local time. Overnight ranges such as 22–6 are supported.
func DuringHours(startHour, endHour int) SendCriteria {
	return Func(func(*models.Message) bool {
		h := time.Now().Hour()
		if startHour <= endHour {
			return h >= startHour && h < endHour
		}
		return h >= startHour || h < endHour
	})
}

// BusinessHours passes messages between 09:00 and 17:00 local time.
func BusinessHours() SendCriteria {
	return DuringHours(9, 17)
}

// OutsideBusinessHours passes messages outside 09:00–17:00 local time.
func OutsideBusinessHours() SendCriteria {
	return Not(BusinessHours())
}

// RateLimit passes at most messagesPerSecond messages per second, with a
// burst of the same size. Token-bucket semantics rather than a strict
// sliding window; excess messages are blocked, not delayed.
func RateLimit(messagesPerSecond int) SendCriteria {
	limiter := rate.NewLimiter(rate.Limit(messagesPerSecond), messagesPerSecond)
	return Func(func(*models.Message) bool {
		return limiter.Allow()
	})
}

// RateLimitWindow passes at most maxMessages per window.
func RateLimitWindow(maxMessages int, window time.Duration) SendCriteria {
	limiter := rate.NewLimiter(rate.Every(window/time.Duration(maxMessages)), maxMessages)
	return Func(func(*models.Message) bool {
		return limiter.Allow()
	})
}

// Throttle passes at most one message every minInterval.
func Throttle(minInterval time.Duration) SendCriteria {
	limiter := rate.NewLimiter(rate.Every(minInterval), 1)
	return Func(func(*models.Message) bool {
		return limiter.Allow()
	})
}
