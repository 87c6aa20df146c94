package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var templateResolutions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cvtailor",
		Subsystem: "templates",
		Name:      "resolutions_total",
		Help:      "模板资产解析次数，按命中层级统计。",
	},
	[]string{"tier"},
)

// 模板解析层级标签。
const (
	TierCache    = "cache"
	TierBackend  = "backend"
	TierStatic   = "static"
	TierFallback = "fallback"
)

// ObserveTemplateResolution 记录一次模板资产解析命中的层级。
func ObserveTemplateResolution(tier string) {
	templateResolutions.WithLabelValues(tier).Inc()
}
