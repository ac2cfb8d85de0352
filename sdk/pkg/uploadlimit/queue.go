package uploadlimit

import (
	"sort"
)

// sessionQueue keeps active sessions ordered by (priority desc, start time
// asc). It is not synchronized; the registry's lock guards all access.
type sessionQueue struct {
	entries []*UploadSession
}

// insert places the session at its ordered position. Ties on priority keep
// earlier start times first; equal start times preserve insertion order.
func (q *sessionQueue) insert(s *UploadSession) {
	i := sort.Search(len(q.entries), func(i int) bool {
		e := q.entries[i]
		if e.PriorityLevel != s.PriorityLevel {
			return e.PriorityLevel < s.PriorityLevel
		}
		return e.StartTime.After(s.StartTime)
	})

	q.entries = append(q.entries, nil)
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = s
}

// remove drops the session with the given ID; reports whether it was
// present.
func (q *sessionQueue) remove(sessionID string) bool {
	for i, e := range q.entries {
		if e.SessionID == sessionID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (q *sessionQueue) depth() int {
	return len(q.entries)
}

// sessionIDs returns the queue order, front first.
func (q *sessionQueue) sessionIDs() []string {
	ids := make([]string, len(q.entries))
	for i, e := range q.entries {
		ids[i] = e.SessionID
	}
	return ids
}
