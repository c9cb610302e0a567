package geom

// 文档注释：计算顶点集合的包围盒
// 约束：空输入返回零值包围盒；单点或共线输入得到宽或高为 0 的退化盒。
func BoundingBox(vertices []Point) BBox {
	if len(vertices) == 0 {
		return BBox{}
	}
	b := BBox{MinX: vertices[0].X, MaxX: vertices[0].X, MinY: vertices[0].Y, MaxY: vertices[0].Y}
	for _, v := range vertices[1:] {
		if v.X < b.MinX {
			b.MinX = v.X
		}
		if v.X > b.MaxX {
			b.MaxX = v.X
		}
		if v.Y < b.MinY {
			b.MinY = v.Y
		}
		if v.Y > b.MaxY {
			b.MaxY = v.Y
		}
	}
	b.Width = b.MaxX - b.MinX
	b.Height = b.MaxY - b.MinY
	return b
}
