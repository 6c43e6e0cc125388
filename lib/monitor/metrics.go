package monitor

type checkMetrics struct {
	checked   int
	changed   int
	unchanged int
	errored   int
}

func (m *checkMetrics) Add(other *checkMetrics) {
	m.checked += other.checked
	m.changed += other.changed
	m.unchanged += other.unchanged
	m.errored += other.errored
}
