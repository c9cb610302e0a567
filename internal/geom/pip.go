package geom

// 文档注释：点入多边形判定（射线法，Even-Odd）
// 背景：用于拖放落点归属房间与 GPS 落点的房间判定；多边形可为凹多边形。
// 约束：顶点少于 3 个时返回 false。落在边上的点结果由严格比较决定：
// 轴对齐矩形 x 最小、y 最小的边视为在内，x 最大、y 最大的边视为在外；该歧义属于射线法本身，不做修正。
func PointInPolygon(pt Point, vertices []Point) bool {
	n := len(vertices)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := vertices[i].X, vertices[i].Y
		xj, yj := vertices[j].X, vertices[j].Y
		if (yi > pt.Y) != (yj > pt.Y) {
			// 两端 y 不同，分母不为零
			cross := (xj-xi)*(pt.Y-yi)/(yj-yi) + xi
			if pt.X < cross {
				inside = !inside
			}
		}
	}
	return inside
}
