package uploadlimit

import (
	"time"
)

const (
	minuteWindow = time.Minute
	hourWindow   = time.Hour
)

// UsageWindow is a fixed-duration usage counter. It has no rotation timer:
// the window is reset lazily whenever it is touched after its duration has
// elapsed.
type UsageWindow struct {
	Count       int       `json:"count"`
	Bytes       int64     `json:"bytes"`
	WindowStart time.Time `json:"windowStart"`
}

// rotateIfExpired resets the window when its duration has elapsed. A
// zero-valued window rotates immediately, which doubles as initialization.
func (w *UsageWindow) rotateIfExpired(now time.Time, d time.Duration) {
	if now.Sub(w.WindowStart) >= d {
		w.Count = 0
		w.Bytes = 0
		w.WindowStart = now
	}
}

func (w *UsageWindow) add(files int, bytes int64) {
	w.Count += files
	w.Bytes += bytes
}

// UserUsage holds one user's sliding minute/hour counters.
type UserUsage struct {
	Minute UsageWindow `json:"minute"`
	Hour   UsageWindow `json:"hour"`
}

// rotated returns a copy with expired windows reset relative to now.
func (u UserUsage) rotated(now time.Time) UserUsage {
	u.Minute.rotateIfExpired(now, minuteWindow)
	u.Hour.rotateIfExpired(now, hourWindow)
	return u
}
