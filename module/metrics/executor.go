package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arborchain/arbor/model/dag"
	"github.com/arborchain/arbor/module"
)

// latencySecBuckets covers everything from sub-10ms local lookups to
// multi-minute stalls of a struggling remote worker.
var latencySecBuckets = []float64{
	0.005, 0.01, 0.02, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 20, 40, 60, 80,
	100, 200,
}

var positiveIntBuckets = []float64{
	1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000, 20000, 50000,
}

const (
	LabelSourceLocal  = "local"
	LabelSourceRemote = "remote"

	LabelStatusHit     = "hit"
	LabelStatusMiss    = "miss"
	LabelStatusSuccess = "success"
	LabelStatusFailure = "failure"
)

// ExecutorCollector implements module.ExecutorMetrics with prometheus.
type ExecutorCollector struct {
	txNotifier                    prometheus.Gauge
	localFetchLatency             prometheus.Histogram
	remoteFetchLatency            prometheus.Histogram
	processedBatches              prometheus.Counter
	currentRound                  prometheus.Gauge
	certificateLatency            prometheus.Histogram
	recoveredCertificates         prometheus.Counter
	pendingRemoteRequestBatch     prometheus.Gauge
	waitingElements               prometheus.Gauge
	batchExecutionLatency         prometheus.Histogram
	committedSubDagBatchCount     prometheus.Histogram
	subDagBatchFetchTotalLatency  prometheus.Histogram
	batchFetch                    *prometheus.CounterVec
}

var _ module.ExecutorMetrics = (*ExecutorCollector)(nil)

func NewExecutorCollector(registerer prometheus.Registerer) *ExecutorCollector {
	factory := promauto.With(registerer)

	return &ExecutorCollector{
		txNotifier: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tx_notifier",
			Help: "occupancy of the channel from the subscriber to the notifier",
		}),
		localFetchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "subscriber_local_fetch_latency",
			Help:    "time it takes to download a payload from the local worker store",
			Buckets: latencySecBuckets,
		}),
		remoteFetchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "subscriber_remote_fetch_latency",
			Help:    "time it takes to download a payload from a remote worker peer",
			Buckets: latencySecBuckets,
		}),
		processedBatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "subscriber_processed_batches",
			Help: "number of batches processed by the subscriber",
		}),
		currentRound: factory.NewGauge(prometheus.GaugeOpts{
			Name: "subscriber_current_round",
			Help: "round of the last certificate seen by the subscriber",
		}),
		certificateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "subscriber_certificate_latency",
			Help:    "latency between certificate creation and its arrival at the executor",
			Buckets: latencySecBuckets,
		}),
		recoveredCertificates: factory.NewCounter(prometheus.CounterOpts{
			Name: "subscriber_recovered_certificates_count",
			Help: "number of certificates processed by the subscriber during the recovery period to fetch their payloads",
		}),
		pendingRemoteRequestBatch: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pending_remote_request_batch",
			Help: "number of pending remote calls to request_batch",
		}),
		waitingElements: factory.NewGauge(prometheus.GaugeOpts{
			Name: "waiting_elements_subscriber",
			Help: "number of pending payload downloads",
		}),
		batchExecutionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_execution_latency",
			Help:    "latency between batch creation and the batch being fetched for execution",
			Buckets: latencySecBuckets,
		}),
		committedSubDagBatchCount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "committed_subdag_batch_count",
			Help:    "number of batches per committed sub-DAG to be fetched",
			Buckets: positiveIntBuckets,
		}),
		subDagBatchFetchTotalLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_fetch_for_committed_subdag_total_latency",
			Help:    "time taken to fetch all batches for a committed sub-DAG, from local or remote workers",
			Buckets: latencySecBuckets,
		}),
		batchFetch: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subscriber_batch_fetch",
			Help: "counter of local/remote batch fetch outcomes",
		}, []string{"source", "status"}),
	}
}

func (c *ExecutorCollector) NotifierOccupancy(occupancy int) {
	c.txNotifier.Set(float64(occupancy))
}

func (c *ExecutorCollector) LocalBatchFetch(hit bool, duration time.Duration) {
	status := LabelStatusMiss
	if hit {
		status = LabelStatusHit
	}
	c.batchFetch.WithLabelValues(LabelSourceLocal, status).Inc()
	c.localFetchLatency.Observe(duration.Seconds())
}

func (c *ExecutorCollector) RemoteBatchFetch(success bool, duration time.Duration) {
	status := LabelStatusFailure
	if success {
		status = LabelStatusSuccess
	}
	c.batchFetch.WithLabelValues(LabelSourceRemote, status).Inc()
	c.remoteFetchLatency.Observe(duration.Seconds())
}

func (c *ExecutorCollector) RemoteRequestStarted() {
	c.pendingRemoteRequestBatch.Inc()
}

func (c *ExecutorCollector) RemoteRequestFinished() {
	c.pendingRemoteRequestBatch.Dec()
}

func (c *ExecutorCollector) PendingFetches(count int) {
	c.waitingElements.Set(float64(count))
}

func (c *ExecutorCollector) BatchProcessed(executionLatency time.Duration) {
	c.processedBatches.Inc()
	c.batchExecutionLatency.Observe(executionLatency.Seconds())
}

func (c *ExecutorCollector) CertificateProcessed(round dag.Round, latency time.Duration) {
	c.currentRound.Set(float64(round))
	c.certificateLatency.Observe(latency.Seconds())
}

func (c *ExecutorCollector) RecoveredCertificates(count int) {
	c.recoveredCertificates.Add(float64(count))
}

func (c *ExecutorCollector) SubDagResolved(batchCount int, totalLatency time.Duration) {
	c.committedSubDagBatchCount.Observe(float64(batchCount))
	c.subDagBatchFetchTotalLatency.Observe(totalLatency.Seconds())
}
