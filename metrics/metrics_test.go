package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCollector_BytesSentAccumulatesPerHost(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.BytesSent("h1", 100)
	c.BytesSent("h1", 50)
	c.BytesSent("h2", 10)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	var h1Value float64
	for _, mf := range mfs {
		if mf.GetName() != "ecs_client_bytes_sent_total" {
			continue
		}
		for _, m := range mf.Metric {
			if labelValue(m, "host") == "h1" {
				h1Value = m.GetCounter().GetValue()
			}
		}
	}
	require.Equal(t, float64(150), h1Value)
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.Label {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
