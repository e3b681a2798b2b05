package queue

import (
	metrics "github.com/rcrowley/go-metrics"
)

type queueMetrics struct {
	readBytes    metrics.Counter
	readPackets  metrics.Counter
	readRetries  metrics.Counter
	readSize     metrics.Histogram
	writeBytes   metrics.Counter
	writePackets metrics.Counter
	resuspends   metrics.Counter
	errors       metrics.Counter
}

func newQueueMetrics(r metrics.Registry) *queueMetrics {
	return &queueMetrics{
		readBytes:    metrics.GetOrRegisterCounter("queue.read.bytes", r),
		readPackets:  metrics.GetOrRegisterCounter("queue.read.packets", r),
		readRetries:  metrics.GetOrRegisterCounter("queue.read.retries", r),
		readSize:     metrics.GetOrRegisterHistogram("queue.read.size", r, metrics.NewExpDecaySample(1028, 0.015)),
		writeBytes:   metrics.GetOrRegisterCounter("queue.write.bytes", r),
		writePackets: metrics.GetOrRegisterCounter("queue.write.packets", r),
		resuspends:   metrics.GetOrRegisterCounter("queue.write.resuspends", r),
		errors:       metrics.GetOrRegisterCounter("queue.errors", r),
	}
}

func (m *queueMetrics) read(n int) {
	m.readBytes.Inc(int64(n))
	m.readPackets.Inc(1)
	m.readSize.Update(int64(n))
}

func (m *queueMetrics) write(n int) {
	m.writeBytes.Inc(int64(n))
	m.writePackets.Inc(1)
}
