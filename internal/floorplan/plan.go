package floorplan

import (
	"sort"

	"floormap/internal/geom"
	"floormap/internal/gpsmap"
	"floormap/internal/model"
)

// 单栋建筑单层的房间集合，保持作者给定的顺序（重叠区域按此顺序取第一个）
type Plan struct {
	Building string
	Floor    string
	rooms    []Room
	byID     map[string]int
}

func NewPlan(building, floor string, rooms []Room) *Plan {
	p := &Plan{Building: building, Floor: floor, byID: make(map[string]int, len(rooms))}
	for _, r := range rooms {
		p.add(r)
	}
	return p
}

func (p *Plan) add(r Room) {
	if i, ok := p.byID[r.ID]; ok {
		p.rooms[i] = r
		return
	}
	p.byID[r.ID] = len(p.rooms)
	p.rooms = append(p.rooms, r)
}

func (p *Plan) Rooms() []Room { return p.rooms }

func (p *Plan) Room(id string) (Room, bool) {
	i, ok := p.byID[id]
	if !ok {
		return Room{}, false
	}
	return p.rooms[i], true
}

// 文档注释：查找包含该点的房间
// 约束：按计划顺序返回第一个命中的房间；边界点遵循 geom.PointInPolygon 的规则。
func (p *Plan) RoomAt(pt geom.Point) (Room, bool) {
	return FindRoom(pt, p.rooms)
}

func FindRoom(pt geom.Point, rooms []Room) (Room, bool) {
	for _, r := range rooms {
		if r.Contains(pt) {
			return r, true
		}
	}
	return Room{}, false
}

// AssetsByRoom：按资产登记的房间分组，组内保持输入顺序；不属于本层房间的资产被忽略
func (p *Plan) AssetsByRoom(assets []model.Asset) map[string][]model.Asset {
	out := make(map[string][]model.Asset)
	for _, a := range assets {
		if _, ok := p.byID[a.RoomID]; !ok {
			continue
		}
		out[a.RoomID] = append(out[a.RoomID], a)
	}
	return out
}

// 文档注释：GPS 定位落在哪个房间
// 约束：无标定或定位越界时返回 false；投影点夹紧后再判定。
func (p *Plan) LocateGPS(lat, lng float64, cal *gpsmap.Calibration) (Room, gpsmap.Projection, bool) {
	proj, ok := gpsmap.Project(lat, lng, cal)
	if !ok || !proj.InBounds {
		return Room{}, proj, false
	}
	r, found := p.RoomAt(proj.Point())
	return r, proj, found
}

// 全部楼层的房间数据，按 building/floor 索引
type Set struct {
	plans map[string]*Plan
}

func NewSet() *Set { return &Set{plans: make(map[string]*Plan)} }

func planKey(building, floor string) string { return building + "\x00" + floor }

func (s *Set) Plan(building, floor string) (*Plan, bool) {
	p, ok := s.plans[planKey(building, floor)]
	return p, ok
}

func (s *Set) Add(r Room) {
	k := planKey(r.Building, r.Floor)
	p, ok := s.plans[k]
	if !ok {
		p = NewPlan(r.Building, r.Floor, nil)
		s.plans[k] = p
	}
	p.add(r)
}

// Floors：某建筑已配置的楼层，按名称排序
func (s *Set) Floors(building string) []string {
	var out []string
	for _, p := range s.plans {
		if p.Building == building {
			out = append(out, p.Floor)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Set) Len() int { return len(s.plans) }
