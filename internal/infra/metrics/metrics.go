package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90, 120, 150, 180, 240, 300, 450, 600},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_attempts_total",
		Help: "Попытки вызова LLM по исходу",
	}, []string{"model", "outcome"})

	DigestBuildSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "digest_build_seconds",
		Help:    "Время построения дайджеста",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 180, 300, 600, 900},
	}, []string{"kind"})

	DigestOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_outcomes_total",
		Help: "Исходы запусков пайплайнов дайджеста",
	}, []string{"kind", "outcome"})

	DigestRequestsByChannel = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_requests_by_channel_total",
		Help: "Количество запросов на построение дайджеста по каналам",
	}, []string{"channel_id"})

	IntervalUnitFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "interval_unit_failures_total",
		Help: "Ошибки отдельных единиц обработки интервала",
	}, []string{"stage"})

	QueueJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_queue_jobs_total",
		Help: "Обработанные задачи очереди дайджестов",
	}, []string{"result"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMAttemptsTotal,
		DigestBuildSeconds,
		DigestOutcomesTotal,
		DigestRequestsByChannel,
		IntervalUnitFailures,
		QueueJobsTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMAttempt учитывает одну попытку вызова модели.
func ObserveLLMAttempt(model, outcome string) {
	if model == "" {
		model = "unknown"
	}
	LLMAttemptsTotal.WithLabelValues(model, outcome).Inc()
}

// ObserveDigest записывает исход и длительность пайплайна.
func ObserveDigest(kind, outcome string, channelID int64, start time.Time) {
	DigestOutcomesTotal.WithLabelValues(kind, outcome).Inc()
	DigestBuildSeconds.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	DigestRequestsByChannel.WithLabelValues(strconv.FormatInt(channelID, 10)).Inc()
}

// IncIntervalFailure увеличивает счётчик ошибок стадии интервала.
func IncIntervalFailure(stage string) {
	IntervalUnitFailures.WithLabelValues(stage).Inc()
}

// IncQueueJob учитывает обработанную задачу очереди.
func IncQueueJob(result string) {
	QueueJobsTotal.WithLabelValues(result).Inc()
}
