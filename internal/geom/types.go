// 包 geom：楼层平面图的二维几何工具（点入多边形、包围盒、房间相对坐标）
package geom

import "math"

// 平面图本地坐标点（x 向右递增，y 向下递增，与 SVG 约定一致）
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Finite：两轴均为有限值（排除 NaN/±Inf）
func (p Point) Finite() bool { return Finite(p.X, p.Y) }

func Finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// 房间内相对坐标：以包围盒宽高为单位，取值 [0,1]
type Relative struct {
	X float64 `json:"relativeX"`
	Y float64 `json:"relativeY"`
}

// 文档注释：轴对齐包围盒
// 约束：Width/Height 为 max-min，退化多边形时为 0，调用方做除法前需判零。
type BBox struct {
	MinX   float64 `json:"minX"`
	MaxX   float64 `json:"maxX"`
	MinY   float64 `json:"minY"`
	MaxY   float64 `json:"maxY"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b BBox) Center() Point {
	return Point{X: b.MinX + b.Width/2, Y: b.MinY + b.Height/2}
}

// 闭区间判定，用于点入多边形前的快速过滤
func (b BBox) Contains(pt Point) bool {
	return pt.X >= b.MinX && pt.X <= b.MaxX && pt.Y >= b.MinY && pt.Y <= b.MaxY
}

func (b BBox) Degenerate() bool { return b.Width <= 0 || b.Height <= 0 }
