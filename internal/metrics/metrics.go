package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LayoutRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "floormap_layout_requests_total",
		Help: "Total number of layout resolutions by view mode",
	}, []string{"mode"})
	LayoutDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "floormap_layout_duration_ms",
		Help:    "Layout resolution duration in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 20, 50, 100, 200},
	})
	ResolvedPositionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "floormap_resolved_positions_total",
		Help: "Resolved asset positions by source",
	}, []string{"source"})
	OmittedAssetsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "floormap_omitted_assets_total",
		Help: "Assets left without a position by the overview density cap",
	})
	PlacementCommitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "floormap_placement_commits_total",
		Help: "Placement commits by outcome",
	}, []string{"outcome"})
	GPSProjectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "floormap_gps_projections_total",
		Help: "GPS projections by in-bounds result",
	}, []string{"in_bounds"})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "floormap_cache_hits_total",
		Help: "Layout cache hits by backend",
	}, []string{"backend"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "floormap_cache_misses_total",
		Help: "Layout cache misses by backend",
	}, []string{"backend"})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "floormap_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})
	CalibrationRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "floormap_calibration_refresh_total",
		Help: "Periodic calibration refresh runs by status",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(LayoutRequestsTotal)
	prometheus.MustRegister(LayoutDurationMs)
	prometheus.MustRegister(ResolvedPositionsTotal)
	prometheus.MustRegister(OmittedAssetsTotal)
	prometheus.MustRegister(PlacementCommitsTotal)
	prometheus.MustRegister(GPSProjectionsTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(RateLimitedTotal)
	prometheus.MustRegister(CalibrationRefreshTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
