package geom

// 文档注释：绝对坐标 → 房间相对坐标
// 背景：手动摆放按房间包围盒比例持久化，房间多边形调整后无需迁移已存坐标。
// 约束：输出两轴均夹紧到 [0,1]，盒外点钉到最近边，不外推；某轴尺寸为 0 时该轴取 0.5。
func ToRelative(pt Point, vertices []Point) Relative {
	b := BoundingBox(vertices)
	return Relative{
		X: relAxis(pt.X, b.MinX, b.Width),
		Y: relAxis(pt.Y, b.MinY, b.Height),
	}
}

// 文档注释：房间相对坐标 → 绝对坐标
// 约束：输入按 [0,1] 夹紧后再映射，退化轴落在该轴最小值上（即包围盒本身）。
func ToAbsolute(rel Relative, vertices []Point) Point {
	b := BoundingBox(vertices)
	return Point{
		X: b.MinX + Clamp01(rel.X)*b.Width,
		Y: b.MinY + Clamp01(rel.Y)*b.Height,
	}
}

func relAxis(v, min, size float64) float64 {
	if size <= 0 {
		return 0.5
	}
	return Clamp01((v - min) / size)
}

func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
