package metric

import (
	"encoding/json"

	gometrics "github.com/rcrowley/go-metrics"
)

// RegistryItem adapts a go-metrics Registry (pbft.Metrics.Registry(),
// or any other subsystem's) into a MetricItem, so a MetricSet can carry
// several subsystems' counters/histograms side by side under one label
// each.
type RegistryItem struct {
	registry gometrics.Registry
}

func NewRegistryItem(registry gometrics.Registry) *RegistryItem {
	return &RegistryItem{registry: registry}
}

func (r *RegistryItem) JSONString() string {
	snapshot := make(map[string]interface{})
	if r.registry != nil {
		r.registry.Each(func(name string, i interface{}) {
			snapshot[name] = snapshotOne(i)
		})
	}
	bz, err := json.Marshal(snapshot)
	if err != nil {
		return "{}"
	}
	return string(bz)
}

func snapshotOne(i interface{}) interface{} {
	switch m := i.(type) {
	case gometrics.Counter:
		return m.Count()
	case gometrics.Histogram:
		return map[string]interface{}{
			"count": m.Count(),
			"mean":  m.Mean(),
			"max":   m.Max(),
			"min":   m.Min(),
		}
	case gometrics.Gauge:
		return m.Value()
	case gometrics.Meter:
		return m.Rate1()
	default:
		return nil
	}
}
