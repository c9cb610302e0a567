package ingest

import (
	"context"
	"slices"
	"time"

	"floormap/internal/gpsmap"
	"floormap/internal/logger"
	"floormap/internal/metrics"
)

// CalibrationSource：标定数据来源（store.Store 实现）
type CalibrationSource interface {
	LoadCalibrations(ctx context.Context) ([]gpsmap.Calibration, error)
}

// ChangeFunc：某楼栋标定的参考点发生变化后调用（失效该楼栋各楼层的布局缓存）
type ChangeFunc func(ctx context.Context, building string)

// 文档注释：从数据源读取一次并合并进注册表，返回合并的条数
// 约束：onChange 可为 nil；只对参考点实际变化（含新增）的楼栋回调，内容相同的重复刷新不触发。
func RefreshCalibrations(ctx context.Context, src CalibrationSource, reg *gpsmap.Registry, onChange ChangeFunc) (int, error) {
	cals, err := src.LoadCalibrations(ctx)
	if err != nil {
		metrics.CalibrationRefreshTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	before := make(map[string][]gpsmap.ReferencePoint, len(cals))
	for _, c := range cals {
		if prev := reg.Get(c.Building); prev != nil {
			before[c.Building] = prev.ReferencePoints
		}
	}
	skipped := reg.Merge(cals)
	metrics.CalibrationRefreshTotal.WithLabelValues("ok").Inc()
	if onChange != nil {
		for _, b := range changedBuildings(reg, before, cals) {
			onChange(ctx, b)
		}
	}
	return len(cals) - skipped, nil
}

func changedBuildings(reg *gpsmap.Registry, before map[string][]gpsmap.ReferencePoint, cals []gpsmap.Calibration) []string {
	var out []string
	seen := make(map[string]bool, len(cals))
	for _, c := range cals {
		if seen[c.Building] {
			continue
		}
		seen[c.Building] = true
		cur := reg.Get(c.Building)
		if cur == nil {
			continue
		}
		if prev, ok := before[c.Building]; ok && slices.Equal(prev, cur.ReferencePoints) {
			continue
		}
		out = append(out, c.Building)
	}
	return out
}

// 文档注释：定时刷新楼栋标定
// 背景：标定工具直接写库后，多实例部署无需重启即可生效；错误记录日志后继续调度。
// 约束：interval<=0 时不启动；ctx 取消后退出。
func StartCalibrationRefresh(ctx context.Context, src CalibrationSource, reg *gpsmap.Registry, interval time.Duration, onChange ChangeFunc) {
	if interval <= 0 {
		logger.L().Info("calibration_refresh_disabled")
		return
	}
	l := logger.L()
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				l.Info("calibration_refresh_stop")
				return
			case <-t.C:
				n, err := RefreshCalibrations(ctx, src, reg, onChange)
				if err != nil {
					l.Error("calibration_refresh_error", "err", err)
					continue
				}
				l.Debug("calibration_refresh_done", "merged", n)
			}
		}
	}()
}
