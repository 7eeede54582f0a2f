package metrics

// SessionTotal accumulates mean/min/max over every value seen in a session.
// There is no removal; a new session gets a new SessionTotal.
type SessionTotal struct {
	transform Transform
	sum       float64
	count     int
	min       float64
	max       float64
}

// NewSessionTotal returns an empty accumulator. A nil transform is the identity.
func NewSessionTotal(transform Transform) *SessionTotal {
	return &SessionTotal{transform: transform}
}

// Add applies the transform and folds the result into the running statistics.
func (s *SessionTotal) Add(value float64) {
	if s.transform != nil {
		value = s.transform(value)
	}
	if s.count == 0 {
		s.min = value
		s.max = value
	} else {
		if value < s.min {
			s.min = value
		}
		if value > s.max {
			s.max = value
		}
	}
	s.sum += value
	s.count++
}

// Average returns sum/count, or 0 with no values.
func (s *SessionTotal) Average() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// Min returns the smallest transformed value, or 0 with no values.
func (s *SessionTotal) Min() float64 {
	if s.count == 0 {
		return 0
	}
	return s.min
}

// Max returns the largest transformed value, or 0 with no values.
func (s *SessionTotal) Max() float64 {
	if s.count == 0 {
		return 0
	}
	return s.max
}

// Sum returns the running sum of transformed values.
func (s *SessionTotal) Sum() float64 {
	return s.sum
}

// Count returns the number of values added.
func (s *SessionTotal) Count() int {
	return s.count
}
