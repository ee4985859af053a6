// Package metrics agrupa las métricas Prometheus del servicio. Vive separado de
// http para que middlewares y binarios lo importen sin ciclos.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes de jws_responses_total.
const (
	OutcomeSigned      = "signed"
	OutcomePassthrough = "passthrough"
	OutcomeFailed      = "failed"
)

var (
	JWSResponses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jws_responses_total",
		Help: "Respuestas evaluadas por el interceptor JWS, por resultado",
	}, []string{"outcome"})

	JWSSigningFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jws_signing_failures_total",
		Help: "Fallas de firma por tipo (KEY_UNAVAILABLE, UNSUPPORTED_ALGORITHM, SERIALIZATION_FAILURE)",
	}, []string{"kind"})

	JWSSignDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "jws_sign_duration_seconds",
		Help:    "Duración de canonicalización + firma",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
)

// RecordSigned registra una respuesta firmada.
func RecordSigned(d time.Duration) {
	JWSResponses.WithLabelValues(OutcomeSigned).Inc()
	JWSSignDuration.Observe(d.Seconds())
}

// RecordPassthrough registra una respuesta no elegible.
func RecordPassthrough() {
	JWSResponses.WithLabelValues(OutcomePassthrough).Inc()
}

// RecordFailure registra una falla de firma.
func RecordFailure(kind string) {
	JWSResponses.WithLabelValues(OutcomeFailed).Inc()
	JWSSigningFailures.WithLabelValues(kind).Inc()
}

// Register registra todas las métricas en reg (o el default si es nil).
// Es idempotente: los duplicados se ignoran.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		JWSResponses, JWSSigningFailures, JWSSignDuration,
		httpRequestsTotal, httpRequestDuration, httpInflight,
	} {
		if err := registerCollector(reg, c); err != nil {
			return err
		}
	}
	return nil
}

// registerCollector registra el collector ignorando duplicados.
func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}
