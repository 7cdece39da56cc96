package application

import "github.com/prometheus/client_golang/prometheus"

var (
	onlineUsersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "im",
		Subsystem: "presence",
		Name:      "online_users",
		Help:      "Users with at least one live session on this node.",
	})
	sessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "im",
		Subsystem: "presence",
		Name:      "sessions",
		Help:      "Live device sessions on this node.",
	})
	sessionClosesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "im",
		Subsystem: "presence",
		Name:      "session_closes_total",
		Help:      "Closed sessions by close status.",
	}, []string{"status"})
	deliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "im",
		Subsystem: "presence",
		Name:      "deliveries_total",
		Help:      "Outbound deliveries by route and result.",
	}, []string{"route", "result"})
	membershipChangesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "im",
		Subsystem: "presence",
		Name:      "membership_changes_total",
		Help:      "Responsibility recomputations triggered by membership changes.",
	})
	transferredUsersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "im",
		Subsystem: "presence",
		Name:      "transferred_users_total",
		Help:      "Users whose slot moved away, by handling policy.",
	}, []string{"policy"})
	nearbyPartialFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "im",
		Subsystem: "presence",
		Name:      "nearby_partial_failures_total",
		Help:      "Members that failed to answer a nearby query.",
	})
)

// RegisterMetrics 在外层 main 包里调用
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		onlineUsersGauge,
		sessionsGauge,
		sessionClosesTotal,
		deliveriesTotal,
		membershipChangesTotal,
		transferredUsersTotal,
		nearbyPartialFailuresTotal,
	)
}
