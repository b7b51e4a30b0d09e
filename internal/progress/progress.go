// Package progress keeps the latest snapshot of running analyses and
// estimates how long they have left.
package progress

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Melvud/ChessAnalysis-sub000/internal/model"
)

// DefaultCapacity is the number of analyses a Tracker remembers.
const DefaultCapacity = 1024

// Percent returns done out of total as a percentage in [0,100].
func Percent(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	p := 100 * float64(done) / float64(total)
	return min(100, max(0, p))
}

// ETA extrapolates the time left from the pace since start.
func ETA(start, now time.Time, done, total int) time.Duration {
	if done <= 0 || done >= total {
		return 0
	}
	perItem := now.Sub(start) / time.Duration(done)
	return perItem * time.Duration(total-done)
}

// Tracker remembers the latest snapshot of each analysis by id. The least
// recently reported analyses are forgotten first.
type Tracker struct {
	snapshots *lru.Cache[string, model.AnalysisSnapshot]
}

// NewTracker returns a Tracker remembering up to capacity analyses.
func NewTracker(capacity int) (*Tracker, error) {
	c, err := lru.New[string, model.AnalysisSnapshot](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating progress tracker: %w", err)
	}
	return &Tracker{snapshots: c}, nil
}

// Report records s as the latest snapshot of s.ID.
func (t *Tracker) Report(s model.AnalysisSnapshot) {
	if s.Eval != nil {
		e := s.Eval.Clone()
		s.Eval = &e
	}
	t.snapshots.Add(s.ID, s)
}

// Get returns the latest snapshot of analysis id.
func (t *Tracker) Get(id string) (model.AnalysisSnapshot, bool) {
	return t.snapshots.Peek(id)
}

// Len returns the number of analyses remembered.
func (t *Tracker) Len() int {
	return t.snapshots.Len()
}

// Tee returns a ProgressFunc recording into t before calling next.
func (t *Tracker) Tee(next model.ProgressFunc) model.ProgressFunc {
	return func(s model.AnalysisSnapshot) {
		t.Report(s)
		if next != nil {
			next(s)
		}
	}
}
