package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dayplanner_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status.",
		},
		[]string{"route", "method", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dayplanner_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dayplanner_upstream_requests_total",
			Help: "Total number of completion API calls by provider, model and outcome.",
		},
		[]string{"provider", "model", "outcome"},
	)
	upstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dayplanner_upstream_request_duration_seconds",
			Help:    "Histogram of completion API call durations.",
			Buckets: []float64{.25, .5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"provider", "model"},
	)
	upstreamTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dayplanner_upstream_tokens_total",
			Help: "Total number of tokens reported by the completion API.",
		},
		[]string{"provider", "model", "kind"},
	)
	scheduleValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dayplanner_schedule_validations_total",
			Help: "Total number of schedule validations by result.",
		},
		[]string{"schema", "result"},
	)
)

// ObserveHTTPRequest 记录一次 HTTP 请求
func ObserveHTTPRequest(route, method, status string, seconds float64) {
	httpRequestsTotal.WithLabelValues(route, method, status).Inc()
	httpRequestDuration.WithLabelValues(route, method).Observe(seconds)
}

// ObserveUpstreamCall 记录一次上游调用，outcome 为 success 或错误类型
func ObserveUpstreamCall(provider, model, outcome string, seconds float64) {
	upstreamRequestsTotal.WithLabelValues(provider, model, outcome).Inc()
	upstreamRequestDuration.WithLabelValues(provider, model).Observe(seconds)
}

// ObserveTokens 记录上游返回的 Token 数
func ObserveTokens(provider, model string, prompt, completion int) {
	if prompt > 0 {
		upstreamTokens.WithLabelValues(provider, model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		upstreamTokens.WithLabelValues(provider, model, "completion").Add(float64(completion))
	}
}

// ObserveValidation 记录一次输出校验结果
func ObserveValidation(schema string, valid bool) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	scheduleValidationsTotal.WithLabelValues(schema, result).Inc()
}
