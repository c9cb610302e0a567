// 包 floorplan：楼层房间多边形（只读参考数据）的加载与查询
package floorplan

import (
	"fmt"
	"strconv"
	"strings"

	"floormap/internal/geom"

	"github.com/paulmach/orb"
)

type Category string

const (
	CategoryOffice      Category = "office"
	CategoryUtility     Category = "utility"
	CategoryCommon      Category = "common"
	CategoryCirculation Category = "circulation"
	CategoryOutdoor     Category = "outdoor"
)

// 文档注释：类别归一化
// 背景：源数据类别带本地化后缀（如 "office オフィス"），仅取第一个词；未知类别归为 office。
func ParseCategory(s string) Category {
	f := strings.Fields(strings.ToLower(s))
	if len(f) == 0 {
		return CategoryOffice
	}
	switch c := Category(f[0]); c {
	case CategoryOffice, CategoryUtility, CategoryCommon, CategoryCirculation, CategoryOutdoor:
		return c
	}
	return CategoryOffice
}

// 文档注释：房间
// 约束：Vertices 至少 3 个点，构成简单多边形（可凹）；bound 在构造时计算，用于快速过滤。
type Room struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Building string       `json:"building"`
	Floor    string       `json:"floor"`
	Category Category     `json:"category"`
	Vertices []geom.Point `json:"vertices"`

	bound orb.Bound
}

func NewRoom(id, name, building, floor string, cat Category, vertices []geom.Point) (Room, error) {
	if len(vertices) < 3 {
		return Room{}, fmt.Errorf("room %s: %d vertices, need at least 3", id, len(vertices))
	}
	r := Room{ID: id, Name: name, Building: building, Floor: floor, Category: cat, Vertices: vertices}
	r.bound = toRing(vertices).Bound()
	return r, nil
}

func (r Room) BBox() geom.BBox { return geom.BoundingBox(r.Vertices) }

// Contains：包围盒过滤后做射线法判定（未经 NewRoom 构造的房间跳过过滤）
func (r Room) Contains(pt geom.Point) bool {
	if r.bound != (orb.Bound{}) && !r.bound.Contains(orb.Point{pt.X, pt.Y}) {
		return false
	}
	return geom.PointInPolygon(pt, r.Vertices)
}

func toRing(vs []geom.Point) orb.Ring {
	ring := make(orb.Ring, 0, len(vs))
	for _, v := range vs {
		ring = append(ring, orb.Point{v.X, v.Y})
	}
	return ring
}

// 文档注释：解析紧凑坐标串 "x1,y1 x2,y2 ..."
// 约束：任一点解析失败即返回错误。
func ParseCoordinates(s string) ([]geom.Point, error) {
	var out []geom.Point
	for _, pair := range strings.Fields(s) {
		xs, ys, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("bad coordinate %q", pair)
		}
		x, err := strconv.ParseFloat(xs, 64)
		if err != nil {
			return nil, fmt.Errorf("bad coordinate %q: %w", pair, err)
		}
		y, err := strconv.ParseFloat(ys, 64)
		if err != nil {
			return nil, fmt.Errorf("bad coordinate %q: %w", pair, err)
		}
		out = append(out, geom.Point{X: x, Y: y})
	}
	return out, nil
}
