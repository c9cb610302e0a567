package gpsmap

import (
	"math"

	"floormap/internal/geom"
)

// 投影结果：X/Y 已夹紧到标定范围，InBounds 由未夹紧的经纬度判定
type Projection struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	InBounds bool    `json:"isInBounds"`
}

func (p Projection) Point() geom.Point { return geom.Point{X: p.X, Y: p.Y} }

// 文档注释：GPS → 平面图坐标（按参考点极值线性插值）
// 背景：仅适用于建筑尺度（数十米）范围的近似，不是通用大地投影。
// 约束：cal 为 nil 时返回 false（该建筑无标定，调用方回退到其他定位方式）。
// Y 轴反向：纬度增大（向北）对应屏幕 y 减小（向上）。
// 返回点夹紧到本地坐标范围；InBounds 使用未夹紧比较，越界定位不应当作有效位置展示。
func Project(lat, lng float64, cal *Calibration) (Projection, bool) {
	if cal == nil || len(cal.ReferencePoints) == 0 {
		return Projection{}, false
	}
	e := cal.bounds()
	normLat := (lat - e.minLat) / (e.maxLat - e.minLat)
	normLng := (lng - e.minLng) / (e.maxLng - e.minLng)

	x := e.minX + normLng*(e.maxX-e.minX)
	y := e.maxY - normLat*(e.maxY-e.minY)

	return Projection{
		X:        geom.Clamp(x, e.minX, e.maxX),
		Y:        geom.Clamp(y, e.minY, e.maxY),
		InBounds: lat >= e.minLat && lat <= e.maxLat && lng >= e.minLng && lng <= e.maxLng,
	}, true
}

// 文档注释：平面图坐标 → GPS（Project 的代数逆）
// 背景：用于标定与调试工具，主流程不依赖。
func Unproject(x, y float64, cal *Calibration) (LatLng, bool) {
	if cal == nil || len(cal.ReferencePoints) == 0 {
		return LatLng{}, false
	}
	e := cal.bounds()
	normX := (x - e.minX) / (e.maxX - e.minX)
	normY := (e.maxY - y) / (e.maxY - e.minY)
	return LatLng{
		Lat: e.minLat + normY*(e.maxLat-e.minLat),
		Lng: e.minLng + normX*(e.maxLng-e.minLng),
	}, true
}

// 球面距离（Haversine），返回米
func Distance(a, b LatLng) float64 {
	const R = 6371000.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return R * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
