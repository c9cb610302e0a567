package floorplan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"floormap/internal/geom"
	"floormap/internal/logger"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 文档注释：从目录加载平面图
// 背景：每个 *.geojson 为一个 FeatureCollection，Feature 为本地坐标系下的 Polygon，
// properties 含 id/name/building/floor/category。
// 约束：只取外环；GeoJSON 闭合重复的末点会被去掉；顶点不足或缺少 building/floor 的要素跳过并记录日志。
func LoadDir(dir string) (*Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read floorplan dir: %w", err)
	}
	var names []string
	for _, ent := range entries {
		if !ent.IsDir() && strings.HasSuffix(strings.ToLower(ent.Name()), ".geojson") {
			names = append(names, ent.Name())
		}
	}
	sort.Strings(names)
	set := NewSet()
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if err := LoadGeoJSON(set, b); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
	}
	logger.L().Info("floorplan_loaded", "dir", dir, "files", len(names), "plans", set.Len())
	return set, nil
}

// LoadGeoJSON：解析单个 FeatureCollection 并加入 set
func LoadGeoJSON(set *Set, b []byte) error {
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return err
	}
	for i, f := range fc.Features {
		r, err := roomFromFeature(f)
		if err != nil {
			logger.L().Warn("floorplan_feature_skip", "idx", i, "err", err)
			continue
		}
		set.Add(r)
	}
	return nil
}

func roomFromFeature(f *geojson.Feature) (Room, error) {
	id := f.Properties.MustString("id", "")
	if id == "" && f.ID != nil {
		id = fmt.Sprint(f.ID)
	}
	if id == "" {
		return Room{}, fmt.Errorf("feature without id")
	}
	building := f.Properties.MustString("building", "")
	floor := f.Properties.MustString("floor", "")
	if building == "" || floor == "" {
		return Room{}, fmt.Errorf("room %s: missing building/floor", id)
	}
	poly, ok := f.Geometry.(orb.Polygon)
	if !ok || len(poly) == 0 {
		return Room{}, fmt.Errorf("room %s: geometry %T is not a polygon", id, f.Geometry)
	}
	outer := poly[0]
	if len(outer) > 1 && outer[0].Equal(outer[len(outer)-1]) {
		outer = outer[:len(outer)-1]
	}
	vs := make([]geom.Point, 0, len(outer))
	for _, p := range outer {
		vs = append(vs, geom.Point{X: p.X(), Y: p.Y()})
	}
	return NewRoom(id, f.Properties.MustString("name", id), building, floor,
		ParseCategory(f.Properties.MustString("category", "")), vs)
}
