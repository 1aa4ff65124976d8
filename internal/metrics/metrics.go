// Package metrics exports engine activity as Prometheus collectors
package metrics

import (
	"context"
	"net/http"

	"flight_surety/internal/models"
	"flight_surety/internal/surety"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is a ledger sink, a reject observer and a stats recorder in one
type Metrics struct {
	registry *prometheus.Registry

	events       *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	paidOut      prometheus.Counter
	credited     prometheus.Counter
	premiums     prometheus.Counter
	finalized    *prometheus.CounterVec
	operational  prometheus.Gauge
	airlines     prometheus.Gauge
	flights      prometheus.Gauge
	oracles      prometheus.Gauge
	openRequests prometheus.Gauge
	escrow       prometheus.Gauge
	credit       prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "surety_events_total",
			Help: "The total number of committed events by kind",
		}, []string{"kind"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "surety_rejected_transactions_total",
			Help: "The total number of rejected transactions by operation and error code",
		}, []string{"op", "code"}),
		paidOut: f.NewCounter(prometheus.CounterOpts{
			Name: "surety_paid_out_ether_total",
			Help: "Ether withdrawn by insurees",
		}),
		credited: f.NewCounter(prometheus.CounterOpts{
			Name: "surety_credited_ether_total",
			Help: "Ether credited to insurees after airline-caused delays",
		}),
		premiums: f.NewCounter(prometheus.CounterOpts{
			Name: "surety_premiums_ether_total",
			Help: "Ether staked on insurance policies",
		}),
		finalized: f.NewCounterVec(prometheus.CounterOpts{
			Name: "surety_flight_status_finalized_total",
			Help: "Flight statuses settled by oracle consensus",
		}, []string{"status"}),
		operational: f.NewGauge(prometheus.GaugeOpts{
			Name: "surety_operational",
			Help: "1 when the operational gate is open",
		}),
		airlines: f.NewGauge(prometheus.GaugeOpts{
			Name: "surety_funded_airlines",
			Help: "Number of funded airlines",
		}),
		flights: f.NewGauge(prometheus.GaugeOpts{
			Name: "surety_flights",
			Help: "Number of registered flights",
		}),
		oracles: f.NewGauge(prometheus.GaugeOpts{
			Name: "surety_oracles",
			Help: "Number of registered oracles",
		}),
		openRequests: f.NewGauge(prometheus.GaugeOpts{
			Name: "surety_open_oracle_requests",
			Help: "Oracle requests still collecting responses",
		}),
		escrow: f.NewGauge(prometheus.GaugeOpts{
			Name: "surety_escrow_ether",
			Help: "Ether staked on flights whose status is not final",
		}),
		credit: f.NewGauge(prometheus.GaugeOpts{
			Name: "surety_outstanding_credit_ether",
			Help: "Ether credited to insurees and not yet withdrawn",
		}),
	}
}

// Publish implements ledger.Sink
func (m *Metrics) Publish(_ context.Context, events []models.Event) error {
	for _, ev := range events {
		m.events.WithLabelValues(string(ev.Kind)).Inc()

		switch ev.Kind {
		case models.EventCreditPaid:
			m.paidOut.Add(models.ToEtherFloat(ev.Amount))
		case models.EventInsureeCredited:
			m.credited.Add(models.ToEtherFloat(ev.Amount))
		case models.EventInsurancePurchased:
			m.premiums.Add(models.ToEtherFloat(ev.Amount))
		case models.EventFlightStatusFinalized:
			if ev.Status != nil {
				m.finalized.WithLabelValues(ev.Status.String()).Inc()
			}
		}
	}
	return nil
}

// Rejected implements ledger.RejectObserver
func (m *Metrics) Rejected(op string, err error) {
	m.rejected.WithLabelValues(op, string(surety.CodeOf(err))).Inc()
}

// RecordStats implements tasks.StatsRecorder
func (m *Metrics) RecordStats(s surety.Stats) {
	if s.Operational {
		m.operational.Set(1)
	} else {
		m.operational.Set(0)
	}
	m.airlines.Set(float64(s.FundedAirlines))
	m.flights.Set(float64(s.Flights))
	m.oracles.Set(float64(s.Oracles))
	m.openRequests.Set(float64(s.OpenRequests))
	m.escrow.Set(models.ToEtherFloat(s.Escrow))
	m.credit.Set(models.ToEtherFloat(s.OutstandingCredit))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
