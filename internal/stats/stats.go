// Package stats implements the simulator's statistics sink: the mandated
// flat key/value statistics file, and a github.com/prometheus/client_golang
// prometheus.Collector exposing the same counters, following
// runZeroInc-sockstats/pkg/exporter/exporter.go's Describe/Collect shape.
// Re-architected per §9's design note into an explicit object owned by
// the simulator root, rather than the reference model's process-wide
// singleton.
package stats

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters holds the mandatory end-of-run statistics keys.
type Counters struct {
	ValidPTECount            []uint64 // indexed by page-table level
	VirtualPageCount         uint64
	ReadRequestInMemory      [2]uint64
	WriteRequestInMemory     [2]uint64
	SwappingCount            uint64
	SwappingTrafficBytes     uint64
	RemappingQueueCongestion uint64
}

// Sink owns the process-wide Counters plus the derived Prometheus
// collector; the simulator root passes it into components by reference
// and calls Close to finalize the output file deterministically.
type Sink struct {
	Counters Counters
	w        io.Writer
}

// New constructs a Sink writing the flat statistics file to w on Close.
func New(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Close writes the mandatory key/value statistics file. It is safe to
// call once, at simulator teardown.
func (s *Sink) Close() error {
	if s.w == nil {
		return nil
	}
	for level, v := range s.Counters.ValidPTECount {
		if _, err := fmt.Fprintf(s.w, "valid_pte_count[%d] %d\n", level, v); err != nil {
			return err
		}
	}
	lines := []struct {
		key string
		val uint64
	}{
		{"virtual_page_count", s.Counters.VirtualPageCount},
		{"read_request_in_memory[0]", s.Counters.ReadRequestInMemory[0]},
		{"read_request_in_memory[1]", s.Counters.ReadRequestInMemory[1]},
		{"write_request_in_memory[0]", s.Counters.WriteRequestInMemory[0]},
		{"write_request_in_memory[1]", s.Counters.WriteRequestInMemory[1]},
		{"swapping_count", s.Counters.SwappingCount},
		{"swapping_traffic_in_bytes", s.Counters.SwappingTrafficBytes},
		{"remapping_request_queue_congestion", s.Counters.RemappingQueueCongestion},
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(s.w, "%s %d\n", l.key, l.val); err != nil {
			return err
		}
	}
	return nil
}

// SimCollector exposes the same counters as a prometheus.Collector for
// scrape-based consumption, following the exporter.Collector shape: a
// Describe/Collect pair over a fixed set of Desc values computed from a
// live *Sink.
type SimCollector struct {
	sink *Sink

	virtualPageCount    *prometheus.Desc
	readRequest         *prometheus.Desc
	writeRequest        *prometheus.Desc
	swappingCount       *prometheus.Desc
	swappingTraffic     *prometheus.Desc
	queueCongestion     *prometheus.Desc
}

// NewSimCollector builds a collector backed by sink's live counters.
func NewSimCollector(sink *Sink) *SimCollector {
	return &SimCollector{
		sink: sink,
		virtualPageCount: prometheus.NewDesc(
			"memsim_virtual_page_count", "Virtual pages tracked by the run.", nil, nil),
		readRequest: prometheus.NewDesc(
			"memsim_read_request_in_memory", "Read requests serviced per memory.", []string{"memory"}, nil),
		writeRequest: prometheus.NewDesc(
			"memsim_write_request_in_memory", "Write requests serviced per memory.", []string{"memory"}, nil),
		swappingCount: prometheus.NewDesc(
			"memsim_swapping_count", "Remapping swaps completed.", nil, nil),
		swappingTraffic: prometheus.NewDesc(
			"memsim_swapping_traffic_bytes", "Bytes moved by remapping swaps.", nil, nil),
		queueCongestion: prometheus.NewDesc(
			"memsim_remapping_request_queue_congestion", "Remapping requests dropped due to queue overflow.", nil, nil),
	}
}

func (c *SimCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.virtualPageCount
	ch <- c.readRequest
	ch <- c.writeRequest
	ch <- c.swappingCount
	ch <- c.swappingTraffic
	ch <- c.queueCongestion
}

func (c *SimCollector) Collect(ch chan<- prometheus.Metric) {
	cnt := c.sink.Counters
	ch <- prometheus.MustNewConstMetric(c.virtualPageCount, prometheus.CounterValue, float64(cnt.VirtualPageCount))
	ch <- prometheus.MustNewConstMetric(c.readRequest, prometheus.CounterValue, float64(cnt.ReadRequestInMemory[0]), "near")
	ch <- prometheus.MustNewConstMetric(c.readRequest, prometheus.CounterValue, float64(cnt.ReadRequestInMemory[1]), "far")
	ch <- prometheus.MustNewConstMetric(c.writeRequest, prometheus.CounterValue, float64(cnt.WriteRequestInMemory[0]), "near")
	ch <- prometheus.MustNewConstMetric(c.writeRequest, prometheus.CounterValue, float64(cnt.WriteRequestInMemory[1]), "far")
	ch <- prometheus.MustNewConstMetric(c.swappingCount, prometheus.CounterValue, float64(cnt.SwappingCount))
	ch <- prometheus.MustNewConstMetric(c.swappingTraffic, prometheus.CounterValue, float64(cnt.SwappingTrafficBytes))
	ch <- prometheus.MustNewConstMetric(c.queueCongestion, prometheus.CounterValue, float64(cnt.RemappingQueueCongestion))
}
