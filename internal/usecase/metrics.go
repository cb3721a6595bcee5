package usecase

import "time"

// MetricsRecorder receives operational measurements from the use cases.
type MetricsRecorder interface {
	ObserveOperation(operation string, err error)
	ObserveQuoteFetch(requested, resolved int, err error)
	ObserveQuoteCache(hit bool)
	ObserveValuation(owner string, netWorth float64, elapsed time.Duration)
	ObserveStoreFailure(operation string)
	ObserveNotification(ok bool)
}

// NopMetrics discards every measurement.
type NopMetrics struct{}

func (NopMetrics) ObserveOperation(string, error)                  {}
func (NopMetrics) ObserveQuoteFetch(int, int, error)               {}
func (NopMetrics) ObserveQuoteCache(bool)                          {}
func (NopMetrics) ObserveValuation(string, float64, time.Duration) {}
func (NopMetrics) ObserveStoreFailure(string)                      {}
func (NopMetrics) ObserveNotification(bool)                        {}
