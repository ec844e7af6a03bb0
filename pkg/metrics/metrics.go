// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

var (
	// IdentifyTotal tracks Identify calls by result
	IdentifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "identity",
			Name:      "identify_total",
			Help:      "Total number of identify calls by status",
		},
		[]string{"status"},
	)

	// IdentifyDuration tracks Identify latency including lock wait
	IdentifyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "identity",
			Name:      "identify_duration_seconds",
			Help:      "Duration of identify calls in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	// ContactsCreatedTotal tracks inserted contacts by link precedence
	ContactsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "identity",
			Name:      "contacts_created_total",
			Help:      "Total number of contacts inserted by link precedence",
		},
		[]string{"link_precedence"},
	)

	// ClusterMergesTotal tracks Identify calls that merged clusters
	ClusterMergesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "identity",
			Name:      "cluster_merges_total",
			Help:      "Total number of identify calls that merged two or more clusters",
		},
	)

	// ContactsRelinkedTotal tracks contacts re-parented during merges
	ContactsRelinkedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "identity",
			Name:      "contacts_relinked_total",
			Help:      "Total number of contacts re-parented during merges",
		},
	)

	// LockWaitDuration tracks time spent acquiring the identify lock
	LockWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "identity",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for the identify lock in seconds",
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// HTTPRequestsTotal tracks inbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks inbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of inbound HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "route"},
	)

	// ObservationsConsumed tracks observations read from Kafka
	ObservationsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "observations_consumed_total",
			Help:      "Total number of observations consumed from Kafka by status",
		},
		[]string{"status"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaPublishDuration tracks Kafka publish duration
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	// GraphProjectionsTotal tracks cluster projections written to the graph
	GraphProjectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "graph",
			Name:      "projections_total",
			Help:      "Total number of cluster projections written to the graph by status",
		},
		[]string{"status"},
	)

	// DatabaseQueryDuration tracks database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	// RedisOperationDuration tracks Redis operation duration
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Duration of Redis operations in seconds",
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"operation"},
	)
)

// RecordIdentify records a finished Identify call
func RecordIdentify(status string, durationSeconds float64) {
	IdentifyTotal.WithLabelValues(status).Inc()
	IdentifyDuration.Observe(durationSeconds)
}

// RecordContactCreated records an inserted contact
func RecordContactCreated(linkPrecedence string) {
	ContactsCreatedTotal.WithLabelValues(linkPrecedence).Inc()
}

// RecordMerge records a cluster merge and the number of contacts it re-parented
func RecordMerge(relinked int) {
	ClusterMergesTotal.Inc()
	ContactsRelinkedTotal.Add(float64(relinked))
}

// RecordHTTPRequest records an inbound HTTP request metric
func RecordHTTPRequest(method, route, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// RecordObservation records a consumed Kafka observation
func RecordObservation(status string) {
	ObservationsConsumed.WithLabelValues(status).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}

// RecordGraphProjection records a graph projection attempt
func RecordGraphProjection(status string) {
	GraphProjectionsTotal.WithLabelValues(status).Inc()
}
