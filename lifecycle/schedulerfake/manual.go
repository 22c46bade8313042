package schedulerfake

import (
	"sync"
	"time"

	"github.com/mycoding/go-session/lifecycle"
)

var _ lifecycle.Scheduler = (*Manual)(nil)

// Manual implements lifecycle.Scheduler against a hand-driven clock.
// Jobs fire synchronously inside Advance, in due order. Share Now with
// the components under test so the whole fixture moves on one clock.
type Manual struct {
	lock sync.Mutex
	now  time.Time
	seq  int
	jobs map[int]job
}

type job struct {
	at time.Time
	fn func()
}

func New(start time.Time) *Manual {
	return &Manual{
		now:  start,
		jobs: make(map[int]job),
	}
}

// Now returns the simulated clock time.
func (m *Manual) Now() time.Time {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.now
}

func (m *Manual) Schedule(delay time.Duration, fn func()) lifecycle.CancelFunc {
	m.lock.Lock()
	defer m.lock.Unlock()

	id := m.seq
	m.seq++
	m.jobs[id] = job{at: m.now.Add(delay), fn: fn}

	return func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		delete(m.jobs, id)
	}
}

// Pending returns the number of scheduled, unfired jobs.
func (m *Manual) Pending() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.jobs)
}

// Advance moves the clock forward and fires every job that comes due,
// earliest first. A fired job may schedule a new one; it fires too if
// it falls inside the same window.
func (m *Manual) Advance(d time.Duration) {
	m.lock.Lock()
	target := m.now.Add(d)

	for {
		id, due, ok := m.earliestDue(target)
		if !ok {
			break
		}
		if due.at.After(m.now) {
			m.now = due.at
		}
		delete(m.jobs, id)

		m.lock.Unlock()
		due.fn()
		m.lock.Lock()
	}

	m.now = target
	m.lock.Unlock()
}

func (m *Manual) earliestDue(target time.Time) (int, job, bool) {
	bestID := -1
	var best job
	for id, j := range m.jobs {
		if j.at.After(target) {
			continue
		}
		if bestID == -1 || j.at.Before(best.at) {
			bestID = id
			best = j
		}
	}
	if bestID == -1 {
		return 0, job{}, false
	}
	return bestID, best, true
}
