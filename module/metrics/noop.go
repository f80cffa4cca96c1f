package metrics

import (
	"time"

	"github.com/arborchain/arbor/model/dag"
	"github.com/arborchain/arbor/module"
)

// NoopCollector is used in tests and in tools that do not scrape metrics.
type NoopCollector struct{}

var _ module.ExecutorMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (nc *NoopCollector) NotifierOccupancy(occupancy int)                        {}
func (nc *NoopCollector) LocalBatchFetch(hit bool, duration time.Duration)       {}
func (nc *NoopCollector) RemoteBatchFetch(success bool, duration time.Duration)  {}
func (nc *NoopCollector) RemoteRequestStarted()                                  {}
func (nc *NoopCollector) RemoteRequestFinished()                                 {}
func (nc *NoopCollector) PendingFetches(count int)                               {}
func (nc *NoopCollector) BatchProcessed(executionLatency time.Duration)          {}
func (nc *NoopCollector) CertificateProcessed(round dag.Round, d time.Duration)  {}
func (nc *NoopCollector) RecoveredCertificates(count int)                        {}
func (nc *NoopCollector) SubDagResolved(batchCount int, latency time.Duration)   {}
