package store

import "time"

func SetJobStoreClock(s *InMemoryJobStore, now func() time.Time) {
	s.now = now
}
