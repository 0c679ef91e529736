package metric

// MetricItem is one labeled subsystem's metrics, reported as a JSON
// object so a MetricSet can dump every registered subsystem uniformly.
type MetricItem interface {
	JSONString() string
}

type mockMetricItem struct {
	name string
}

func (mock *mockMetricItem) JSONString() string {
	return mock.name
}
