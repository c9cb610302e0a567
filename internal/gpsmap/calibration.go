// 包 gpsmap：GPS 坐标与楼层平面图本地坐标之间的线性映射
package gpsmap

import (
	"encoding/json"
	"errors"
	"fmt"

	"floormap/internal/geom"
)

var ErrInvalidCalibration = errors.New("invalid calibration")

// 经纬度（WGS84）
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// 文档注释：标定参考点（一个地理坐标对应一个平面图坐标）
type ReferencePoint struct {
	GPS   LatLng     `json:"gps"`
	Local geom.Point `json:"local"`
}

// 兼容旧配置中的 svg 字段名
func (r *ReferencePoint) UnmarshalJSON(b []byte) error {
	var raw struct {
		GPS   LatLng      `json:"gps"`
		Local *geom.Point `json:"local"`
		SVG   *geom.Point `json:"svg"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.GPS = raw.GPS
	switch {
	case raw.Local != nil:
		r.Local = *raw.Local
	case raw.SVG != nil:
		r.Local = *raw.SVG
	default:
		return fmt.Errorf("%w: reference point without local coordinate", ErrInvalidCalibration)
	}
	return nil
}

// 文档注释：单栋建筑的 GPS 标定
// 背景：四个参考点通常取建筑四角；映射只使用四点的经纬度与本地坐标极值。
// 约束：经纬度两个方向的跨度必须非零，否则映射无定义。
type Calibration struct {
	Building        string           `json:"building"`
	ReferencePoints []ReferencePoint `json:"referencePoints"`
}

// 参考点极值，由 bounds() 一次计算
type extent struct {
	minLat, maxLat, minLng, maxLng float64
	minX, maxX, minY, maxY         float64
}

func (c *Calibration) bounds() extent {
	rp := c.ReferencePoints
	e := extent{
		minLat: rp[0].GPS.Lat, maxLat: rp[0].GPS.Lat,
		minLng: rp[0].GPS.Lng, maxLng: rp[0].GPS.Lng,
		minX: rp[0].Local.X, maxX: rp[0].Local.X,
		minY: rp[0].Local.Y, maxY: rp[0].Local.Y,
	}
	for _, r := range rp[1:] {
		e.minLat = min(e.minLat, r.GPS.Lat)
		e.maxLat = max(e.maxLat, r.GPS.Lat)
		e.minLng = min(e.minLng, r.GPS.Lng)
		e.maxLng = max(e.maxLng, r.GPS.Lng)
		e.minX = min(e.minX, r.Local.X)
		e.maxX = max(e.maxX, r.Local.X)
		e.minY = min(e.minY, r.Local.Y)
		e.maxY = max(e.maxY, r.Local.Y)
	}
	return e
}

// 文档注释：校验标定
// 约束：恰好四个参考点；经度、纬度、本地 x、本地 y 四个方向的跨度都必须为正。
func (c *Calibration) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil", ErrInvalidCalibration)
	}
	if c.Building == "" {
		return fmt.Errorf("%w: missing building", ErrInvalidCalibration)
	}
	if len(c.ReferencePoints) != 4 {
		return fmt.Errorf("%w: %s has %d reference points, want 4", ErrInvalidCalibration, c.Building, len(c.ReferencePoints))
	}
	e := c.bounds()
	if !(e.minLat < e.maxLat) || !(e.minLng < e.maxLng) {
		return fmt.Errorf("%w: %s has degenerate lat/lng range", ErrInvalidCalibration, c.Building)
	}
	if !(e.minX < e.maxX) || !(e.minY < e.maxY) {
		return fmt.Errorf("%w: %s has degenerate local range", ErrInvalidCalibration, c.Building)
	}
	return nil
}
