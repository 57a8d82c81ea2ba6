package stats

// NoopStats satisfies StatsProvider for tests and for components wired
// without metrics.
type NoopStats struct{}

func (NoopStats) Incr(string)           {}
func (NoopStats) RegisterMetric(string) {}
func (NoopStats) Run()                  {}
