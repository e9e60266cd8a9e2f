package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/verte-zerg/repostats/internal/stats"
)

const collectTimeout = 5 * time.Second

// collector implements prometheus.Collector and reads the store on each scrape.
type collector struct {
	src stats.Source

	records *prometheus.Desc
	sum     *prometheus.Desc
	hits    *prometheus.Desc
	errors  *prometheus.Desc
}

func newCollector(src stats.Source) *collector {
	return &collector{
		src: src,
		records: prometheus.NewDesc(
			"repostats_records",
			"Number of tracked request counters.",
			nil, nil,
		),
		sum: prometheus.NewDesc(
			"repostats_records_sum",
			"Sum of all request counters.",
			nil, nil,
		),
		hits: prometheus.NewDesc(
			"repostats_record_hits_total",
			"Requests recorded per name.",
			[]string{"name"}, nil,
		),
		errors: prometheus.NewDesc(
			"repostats_scrape_errors",
			"1 if the last scrape failed to read the store.",
			nil, nil,
		),
	}
}

// Describe sends metric descriptors to the channel.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.records
	ch <- c.sum
	ch <- c.hits
	ch <- c.errors
}

// Collect reads the store and sends current values.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	failed := 0.0
	if err := c.collect(ctx, ch); err != nil {
		slog.Error("failed to collect request counters", "error", err)
		failed = 1
	}
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.GaugeValue, failed)
}

func (c *collector) collect(ctx context.Context, ch chan<- prometheus.Metric) error {
	count, err := c.src.CountRecords(ctx)
	if err != nil {
		return err
	}
	sum, err := c.src.SumRecords(ctx)
	if err != nil {
		return err
	}
	entries, err := c.src.FetchStats(ctx, nil)
	if err != nil {
		return err
	}
	ch <- prometheus.MustNewConstMetric(c.records, prometheus.GaugeValue, float64(count))
	ch <- prometheus.MustNewConstMetric(c.sum, prometheus.GaugeValue, float64(sum))
	for _, e := range entries {
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(e.Value), e.Name)
	}
	return nil
}
