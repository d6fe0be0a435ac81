package schema

import "time"

// Clock supplies wall-clock time for scheduling. Tests use a fake.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}
