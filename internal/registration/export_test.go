package registration

import "time"

func (s *Service) SetIDGenerator(fn func() string) { s.newID = fn }

func (s *Service) SetClock(fn func() time.Time) { s.now = fn }
