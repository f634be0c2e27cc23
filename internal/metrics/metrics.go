// Package metrics holds the Prometheus collectors of the map view service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SelectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tmap_selections_total",
		Help: "Selection transitions by outcome (selected, cleared, miss, boundary_missing)",
	}, []string{"outcome"})
	CameraCommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tmap_camera_commands_total",
		Help: "Camera commands emitted by kind; geometry_missing when none could be planned",
	}, []string{"kind"})
	LocateTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tmap_locate_total",
		Help: "Locate requests by outcome (ok, unsupported, no_fix)",
	}, []string{"outcome"})
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tmap_sessions_active",
		Help: "Map sessions held in memory",
	})
	StreamClients = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tmap_stream_clients",
		Help: "Connected view stream clients by transport (sse, ws)",
	}, []string{"transport"})
)

func init() {
	prometheus.MustRegister(SelectionsTotal)
	prometheus.MustRegister(CameraCommandsTotal)
	prometheus.MustRegister(LocateTotal)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(StreamClients)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
