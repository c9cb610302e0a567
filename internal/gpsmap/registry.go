package gpsmap

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"floormap/internal/logger"
)

// 文档注释：建筑标定注册表
// 背景：启动时一次性加载（文件/数据库），之后只读；标定工具通过 Update 显式更新。
// 约束：读路径通过 atomic.Value 无锁获取快照；写路径复制整张表后替换，已取得的快照不受影响。
type Registry struct {
	v  atomic.Value // map[string]*Calibration
	mu sync.Mutex   // 串行化写入
}

func NewRegistry(cals ...Calibration) (*Registry, error) {
	r := &Registry{}
	r.v.Store(map[string]*Calibration{})
	if err := r.Replace(cals); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) snapshot() map[string]*Calibration {
	x := r.v.Load()
	if x == nil {
		return nil
	}
	return x.(map[string]*Calibration)
}

// Get：按建筑名获取标定；未配置时返回 nil
func (r *Registry) Get(building string) *Calibration {
	return r.snapshot()[building]
}

func (r *Registry) Buildings() []string {
	snap := r.snapshot()
	out := make([]string, 0, len(snap))
	for k := range snap {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// 文档注释：更新（或新增）单栋建筑的标定
// 约束：校验失败时不修改注册表并返回 ErrInvalidCalibration。
func (r *Registry) Update(cal Calibration) error {
	if err := cal.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.snapshot()
	next := make(map[string]*Calibration, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	c := cal
	c.ReferencePoints = append([]ReferencePoint(nil), cal.ReferencePoints...)
	next[c.Building] = &c
	r.v.Store(next)
	logger.L().Info("calibration_updated", "building", c.Building)
	return nil
}

// Replace：整体替换标定表（用于定时从数据库刷新）；任一标定非法时整体不生效
func (r *Registry) Replace(cals []Calibration) error {
	next := make(map[string]*Calibration, len(cals))
	for i := range cals {
		if err := cals[i].Validate(); err != nil {
			return err
		}
		c := cals[i]
		c.ReferencePoints = append([]ReferencePoint(nil), cals[i].ReferencePoints...)
		next[c.Building] = &c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.v.Store(next)
	return nil
}

// Merge：逐条更新，返回被跳过的非法标定数量
func (r *Registry) Merge(cals []Calibration) int {
	skipped := 0
	for _, c := range cals {
		if err := r.Update(c); err != nil {
			logger.L().Error("calibration_skip", "building", c.Building, "err", err)
			skipped++
		}
	}
	return skipped
}

// 按建筑名投影；未标定时返回 false
func (r *Registry) Project(building string, lat, lng float64) (Projection, bool) {
	return Project(lat, lng, r.Get(building))
}

// 文档注释：从 JSON 文件加载标定列表
// 约束：文件内容为 Calibration 数组；文件不存在时返回 os.ErrNotExist 包装错误，由调用方决定是否忽略。
func LoadFile(path string) ([]Calibration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}
	var cals []Calibration
	if err := json.Unmarshal(b, &cals); err != nil {
		return nil, fmt.Errorf("parse calibration file %s: %w", path, err)
	}
	return cals, nil
}
