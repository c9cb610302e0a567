// 包 layout：房间内资产显示位置的解析（手动 > GPS > 自动网格 > 默认）
package layout

import (
	"math"
	"sort"

	"floormap/internal/floorplan"
	"floormap/internal/geom"
	"floormap/internal/gpsmap"
	"floormap/internal/model"
)

type Source string

const (
	SourceManual   Source = "manual"
	SourceGPS      Source = "gps"
	SourceAutoGrid Source = "auto-grid"
	SourceDefault  Source = "default"
)

const (
	detailMarginRatio = 0.15
	overviewMargin    = 8.0
	// 概览模式每个资产占用的最小面积（平面图单位²）
	overviewCellArea = 150.0
)

type Options struct {
	UseGPS      bool
	Detail      bool
	Calibration *gpsmap.Calibration
}

type Resolved struct {
	AssetID string  `json:"assetId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Source  Source  `json:"source"`
}

// 文档注释：单个房间的解析结果
// 约束：Positions 按输入资产顺序；Omitted 为概览密度上限之外、不应渲染的资产 ID（按 ID 排序）。
type Result struct {
	RoomID    string     `json:"roomId"`
	Positions []Resolved `json:"positions"`
	Omitted   []string   `json:"omitted,omitempty"`
}

func (r Result) Position(assetID string) (Resolved, bool) {
	for _, p := range r.Positions {
		if p.AssetID == assetID {
			return p, true
		}
	}
	return Resolved{}, false
}

// 文档注释：解析一个房间内所有资产的位置
// 背景：assets 应为 RoomID 等于 room.ID 的资产；其他房间的资产同样参与计算，但其手动位置不会命中。
// 约束：
// - 同一输入必定得到同一输出（未定位资产按 ID 排序后分配网格序号，与上游列表顺序无关）。
// - 手动位置的 RoomID 与当前房间不一致视为过期，继续尝试 GPS。
// - GPS 投影越界或无标定时回退到自动网格。
// - 房间包围盒退化（宽或高为 0）时未定位资产落在包围盒中心，来源为 default。
func Resolve(room floorplan.Room, assets []model.Asset, opt Options) Result {
	box := room.BBox()
	res := Result{RoomID: room.ID, Positions: make([]Resolved, 0, len(assets))}

	placed := make(map[string]Resolved, len(assets))
	var unplaced []string
	for _, a := range assets {
		if p, ok := resolveFixed(a, room, opt); ok {
			placed[a.ID] = p
			continue
		}
		unplaced = append(unplaced, a.ID)
	}
	sort.Strings(unplaced)

	g := newGrid(box, len(unplaced), opt.Detail)
	slot := make(map[string]int, len(unplaced))
	for i, id := range unplaced {
		slot[id] = i
	}

	for _, a := range assets {
		if p, ok := placed[a.ID]; ok {
			res.Positions = append(res.Positions, p)
			continue
		}
		idx := slot[a.ID]
		if box.Degenerate() {
			c := box.Center()
			res.Positions = append(res.Positions, Resolved{AssetID: a.ID, X: c.X, Y: c.Y, Source: SourceDefault})
			continue
		}
		if idx >= g.capacity {
			res.Omitted = append(res.Omitted, a.ID)
			continue
		}
		pt, ok := g.cell(idx)
		if !ok {
			pt = box.Center()
			res.Positions = append(res.Positions, Resolved{AssetID: a.ID, X: pt.X, Y: pt.Y, Source: SourceDefault})
			continue
		}
		res.Positions = append(res.Positions, Resolved{AssetID: a.ID, X: pt.X, Y: pt.Y, Source: SourceAutoGrid})
	}
	sort.Strings(res.Omitted)
	return res
}

func resolveFixed(a model.Asset, room floorplan.Room, opt Options) (Resolved, bool) {
	if mp, ok := a.ManualIn(room.ID); ok {
		pt := geom.ToAbsolute(mp.Relative(), room.Vertices)
		return Resolved{AssetID: a.ID, X: pt.X, Y: pt.Y, Source: SourceManual}, true
	}
	if opt.UseGPS && a.HasGPS() {
		if proj, ok := gpsmap.Project(*a.Latitude, *a.Longitude, opt.Calibration); ok && proj.InBounds {
			return Resolved{AssetID: a.ID, X: proj.X, Y: proj.Y, Source: SourceGPS}, true
		}
	}
	return Resolved{}, false
}

// ResolvePlan：按平面图顺序解析整层所有房间
func ResolvePlan(plan *floorplan.Plan, assets []model.Asset, opt Options) []Result {
	byRoom := plan.AssetsByRoom(assets)
	out := make([]Result, 0, len(plan.Rooms()))
	for _, r := range plan.Rooms() {
		out = append(out, Resolve(r, byRoom[r.ID], opt))
	}
	return out
}

// 网格：cols = ceil(sqrt(n·aspect))，rows = ceil(n/cols)，资产位于格子中心
type grid struct {
	originX, originY float64
	cellW, cellH     float64
	cols, rows       int
	capacity         int
}

func newGrid(box geom.BBox, n int, detail bool) grid {
	if n == 0 {
		return grid{}
	}
	var mx, my float64
	k := n
	if detail {
		m := detailMarginRatio * math.Min(box.Width, box.Height)
		mx, my = m, m
	} else {
		mx = axisMargin(overviewMargin, box.Width)
		my = axisMargin(overviewMargin, box.Height)
		k = min(n, int(math.Floor(box.Width*box.Height/overviewCellArea)))
	}
	cols, rows := gridShape(k, box)
	g := grid{originX: box.MinX + mx, originY: box.MinY + my, cols: cols, rows: rows, capacity: k}
	if cols > 0 && rows > 0 {
		g.cellW = (box.Width - 2*mx) / float64(cols)
		g.cellH = (box.Height - 2*my) / float64(rows)
	}
	return g
}

// 固定边距大于房间尺寸的一半时，该轴不留边距
func axisMargin(m, size float64) float64 {
	if 2*m >= size {
		return 0
	}
	return m
}

func gridShape(n int, box geom.BBox) (cols, rows int) {
	if n <= 0 {
		return 0, 0
	}
	aspect := 1.0
	if box.Height > 0 {
		aspect = box.Width / box.Height
	}
	cols = int(math.Ceil(math.Sqrt(float64(n) * aspect)))
	if cols < 1 {
		cols = 1
	}
	rows = int(math.Ceil(float64(n) / float64(cols)))
	return cols, rows
}

func (g grid) cell(idx int) (geom.Point, bool) {
	if g.cols == 0 || idx < 0 || idx >= g.capacity {
		return geom.Point{}, false
	}
	row, col := idx/g.cols, idx%g.cols
	if row >= g.rows {
		return geom.Point{}, false
	}
	return geom.Point{
		X: g.originX + float64(col)*g.cellW + g.cellW/2,
		Y: g.originY + float64(row)*g.cellH + g.cellH/2,
	}, true
}
