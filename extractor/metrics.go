package extractor

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "diskjockey"

type Metrics struct {
	StripesRead     prometheus.Counter
	HoleStripes     prometheus.Counter
	BytesRead       prometheus.Counter
	GapBytes        prometheus.Counter
	BlocksDelivered prometheus.Counter
	FilesRetired    prometheus.Counter
	FilesFailed     prometheus.Counter
	ShortReads      prometheus.Counter
	ActiveFiles     prometheus.Gauge
}

// NewMetrics creates the scheduler metrics and registers them with reg
// when it is not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		})
	}

	m := &Metrics{
		StripesRead: counter("stripes_read_total",
			"Device reads issued for stripes."),
		HoleStripes: counter("hole_stripes_total",
			"Stripes zero filled for sparse regions without device access."),
		BytesRead: counter("device_read_bytes_total",
			"Bytes requested from the device including gaps."),
		GapBytes: counter("gap_bytes_total",
			"Bytes read over between coalesced runs and discarded."),
		BlocksDelivered: counter("blocks_delivered_total",
			"Blocks handed to the consumer."),
		FilesRetired: counter("files_retired_total",
			"Files fully delivered or failed and released."),
		FilesFailed: counter("files_failed_total",
			"Files which could not be delivered completely."),
		ShortReads: counter("short_reads_total",
			"Device reads returning fewer bytes than requested."),
		ActiveFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_files",
			Help:      "Files currently in the active window.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.StripesRead, m.HoleStripes, m.BytesRead, m.GapBytes,
			m.BlocksDelivered, m.FilesRetired, m.FilesFailed,
			m.ShortReads, m.ActiveFiles,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}
