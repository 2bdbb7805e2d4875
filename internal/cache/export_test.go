package cache

import "time"

func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }
