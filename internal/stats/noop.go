package stats

// Noop drops every measurement. Analyzers, caches and oracles start with
// it until WithStats supplies a real collector. Embed it in a test
// collector to implement only the methods under test.
type Noop struct{}

var _ Collector = Noop{}

// NewNoop returns a collector that drops every measurement.
func NewNoop() Collector {
	return Noop{}
}

// OrNoop returns c, or a Noop when c is nil.
func OrNoop(c Collector) Collector {
	if c == nil {
		return Noop{}
	}
	return c
}

func (Noop) IncCounter(string, int64)         {}
func (Noop) SetGauge(string, int64)           {}
func (Noop) ObserveHistogram(string, float64) {}
