// Package metrics exposes backtest activity as Prometheus series:
//
//	turtle_orders_total{instrument,offset,result}  orders proposed to the gate
//	turtle_rejections_total{reason}                orders the gate turned down
//	turtle_fill_contracts_total{instrument,direction}
//	turtle_days_total                              days finalized
//	turtle_balance                                 balance after the last day
//	turtle_drawdown                                drawdown after the last day (<= 0)
//
// Each Metrics owns its registry so several runs can coexist in one process.
// A run's final state can be written in the node exporter textfile format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	reg *prometheus.Registry

	orders     *prometheus.CounterVec
	rejections *prometheus.CounterVec
	fills      *prometheus.CounterVec
	days       prometheus.Counter
	balance    prometheus.Gauge
	drawdown   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),

		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turtle_orders_total",
				Help: "Orders proposed to the portfolio gate",
			},
			[]string{"instrument", "offset", "result"},
		),

		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turtle_rejections_total",
				Help: "Orders rejected by the portfolio gate, by reason",
			},
			[]string{"reason"},
		),

		fills: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turtle_fill_contracts_total",
				Help: "Contracts filled",
			},
			[]string{"instrument", "direction"},
		),

		days: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "turtle_days_total",
				Help: "Days finalized",
			},
		),

		balance: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "turtle_balance",
				Help: "Account balance after the last finalized day",
			},
		),

		drawdown: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "turtle_drawdown",
				Help: "Drawdown from the high water mark after the last finalized day",
			},
		),
	}

	m.reg.MustRegister(m.orders, m.rejections, m.fills, m.days, m.balance, m.drawdown)
	return m
}

// Registry returns the registry holding every series.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ObserveOrder counts one proposal. reason is empty for accepted orders.
func (m *Metrics) ObserveOrder(instrument, offset string, accepted bool, reason string) {
	result := "accepted"
	if !accepted {
		result = "rejected"
		m.rejections.WithLabelValues(reason).Inc()
	}
	m.orders.WithLabelValues(instrument, offset, result).Inc()
}

// ObserveFill adds volume contracts.
func (m *Metrics) ObserveFill(instrument, direction string, volume int) {
	m.fills.WithLabelValues(instrument, direction).Add(float64(volume))
}

// ObserveDay records one finalized day and the balance curve after it.
func (m *Metrics) ObserveDay(balance, drawdown float64) {
	m.days.Inc()
	m.balance.Set(balance)
	m.drawdown.Set(drawdown)
}

// WriteTextfile writes every series to path for the node exporter textfile
// collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
