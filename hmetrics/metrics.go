// Package hmetrics ports the teacher's per-component metrics constructor
// pattern (_examples/luxfi-consensus/protocol/nova/metrics.go: newMetrics(log, registerer, ...)
// building a struct of prometheus.Gauge/Counter and registering each) to the
// three stateful components that want runtime visibility: the time
// coordinator, the core router, and the broker.
package hmetrics

import "github.com/prometheus/client_golang/prometheus"

// TimeCoordinatorMetrics tracks grant and iteration activity for one
// federate's TimeCoordinator.
type TimeCoordinatorMetrics struct {
	GrantsIssued   prometheus.Counter
	IterationsRun  prometheus.Counter
	CurrentGranted prometheus.Gauge
	BarrierValue   prometheus.Gauge
}

// NewTimeCoordinatorMetrics registers and returns a fresh
// TimeCoordinatorMetrics for the federate named by fedName. It is safe to
// pass a nil registerer, in which case metrics are kept in-process but never
// exported.
func NewTimeCoordinatorMetrics(registerer prometheus.Registerer, fedName string) (*TimeCoordinatorMetrics, error) {
	labels := prometheus.Labels{"federate": fedName}
	m := &TimeCoordinatorMetrics{
		GrantsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "helics_timecoord_grants_issued_total",
			Help:        "Number of time grants issued to this federate",
			ConstLabels: labels,
		}),
		IterationsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "helics_timecoord_iterations_total",
			Help:        "Number of iterative grants at the same logical time",
			ConstLabels: labels,
		}),
		CurrentGranted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "helics_timecoord_current_granted_time",
			Help:        "Most recently granted logical time",
			ConstLabels: labels,
		}),
		BarrierValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "helics_timecoord_barrier_value",
			Help:        "Current federation time barrier, if any",
			ConstLabels: labels,
		}),
	}
	if registerer == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.GrantsIssued, m.IterationsRun, m.CurrentGranted, m.BarrierValue} {
		if err := registerCollector(registerer, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// CoreMetrics tracks routing activity for one Core.
type CoreMetrics struct {
	MessagesRouted   prometheus.Counter
	ValuesDelivered  prometheus.Counter
	FilterInvocations prometheus.Counter
	QueriesAnswered  prometheus.Counter
}

// NewCoreMetrics registers and returns a fresh CoreMetrics for the core
// named coreName.
func NewCoreMetrics(registerer prometheus.Registerer, coreName string) (*CoreMetrics, error) {
	labels := prometheus.Labels{"core": coreName}
	m := &CoreMetrics{
		MessagesRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "helics_core_messages_routed_total",
			Help:        "Number of control/data messages routed by this core",
			ConstLabels: labels,
		}),
		ValuesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "helics_core_values_delivered_total",
			Help:        "Number of publish-value deliveries made by this core",
			ConstLabels: labels,
		}),
		FilterInvocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "helics_core_filter_invocations_total",
			Help:        "Number of filter operator invocations handled by this core",
			ConstLabels: labels,
		}),
		QueriesAnswered: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "helics_core_queries_answered_total",
			Help:        "Number of queries answered by this core",
			ConstLabels: labels,
		}),
	}
	if registerer == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.MessagesRouted, m.ValuesDelivered, m.FilterInvocations, m.QueriesAnswered} {
		if err := registerCollector(registerer, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// BrokerMetrics tracks federation-wide bookkeeping for one Broker.
type BrokerMetrics struct {
	ChildrenRegistered prometheus.Gauge
	GlobalErrors       prometheus.Counter
	BarrierSets        prometheus.Counter
}

// NewBrokerMetrics registers and returns a fresh BrokerMetrics for the
// broker named brokerName.
func NewBrokerMetrics(registerer prometheus.Registerer, brokerName string) (*BrokerMetrics, error) {
	labels := prometheus.Labels{"broker": brokerName}
	m := &BrokerMetrics{
		ChildrenRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "helics_broker_children_registered",
			Help:        "Number of child cores/brokers currently registered",
			ConstLabels: labels,
		}),
		GlobalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "helics_broker_global_errors_total",
			Help:        "Number of GLOBAL_ERROR broadcasts issued by this broker",
			ConstLabels: labels,
		}),
		BarrierSets: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "helics_broker_barrier_sets_total",
			Help:        "Number of times the time barrier was raised",
			ConstLabels: labels,
		}),
	}
	if registerer == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.ChildrenRegistered, m.GlobalErrors, m.BarrierSets} {
		if err := registerCollector(registerer, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// registerCollector registers c, tolerating a collector that is already
// registered (common when multiple federates in-process share a registry).
func registerCollector(registerer prometheus.Registerer, c prometheus.Collector) error {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errorsAs(err, &are) {
			return nil
		}
		return err
	}
	return nil
}

func errorsAs(err error, target *prometheus.AlreadyRegisteredError) bool {
	are, ok := err.(prometheus.AlreadyRegisteredError)
	if !ok {
		return false
	}
	*target = are
	return true
}
