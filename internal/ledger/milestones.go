package ledger

import (
	"fmt"
	"sync"
	"time"
)

// milestoneLevels are the capital multiples worth announcing, each at
// most once.
var milestoneLevels = []float64{2, 5, 10, 25, 50, 100, 1000}

// Milestone is one crossing of a capital multiple.
type Milestone struct {
	Multiple   float64
	CapitalUSD float64
}

// LineWriter appends one line durably. *logger.SafeFileWriter satisfies
// it.
type LineWriter interface {
	WriteLine(line string) error
}

// MilestoneTracker records which multiples of starting capital have been
// crossed. Append-only; a level fires once even if capital later drops
// below it and recovers. Crossings are also appended to the journal when
// one is configured; the in-memory log stays authoritative if the journal
// write fails.
type MilestoneTracker struct {
	mu       sync.Mutex
	starting float64
	reached  map[float64]bool
	log      []Milestone
	journal  LineWriter
}

func NewMilestoneTracker(startingUSD float64, journal LineWriter) *MilestoneTracker {
	return &MilestoneTracker{
		starting: startingUSD,
		reached:  make(map[float64]bool),
		journal:  journal,
	}
}

// Check returns the levels newly crossed at the given capital, lowest
// first.
func (m *MilestoneTracker) Check(capitalUSD float64) []Milestone {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.starting <= 0 {
		return nil
	}

	var crossed []Milestone
	multiple := capitalUSD / m.starting
	for _, level := range milestoneLevels {
		if multiple >= level && !m.reached[level] {
			m.reached[level] = true
			ms := Milestone{Multiple: level, CapitalUSD: capitalUSD}
			m.log = append(m.log, ms)
			m.appendJournal(ms)
			crossed = append(crossed, ms)
		}
	}
	return crossed
}

func (m *MilestoneTracker) appendJournal(ms Milestone) {
	if m.journal == nil {
		return
	}
	line := fmt.Sprintf("%s %gx $%.2f",
		time.Now().UTC().Format(time.RFC3339), ms.Multiple, ms.CapitalUSD)
	_ = m.journal.WriteLine(line)
}

// Log returns a copy of every milestone recorded so far.
func (m *MilestoneTracker) Log() []Milestone {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Milestone, len(m.log))
	copy(out, m.log)
	return out
}
