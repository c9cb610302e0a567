package placement

import (
	"errors"
	"sync"
	"time"

	"floormap/internal/floorplan"
	"floormap/internal/geom"
	"floormap/internal/model"
)

var (
	ErrDragActive  = errors.New("another asset is being dragged")
	ErrNotDragging = errors.New("no drag in progress")
)

// 文档注释：单次拖动会话
// 背景：同一时刻只允许一个资产处于拖动中；按下记录指针与资产当前位置的偏移，
// 移动时位置 = 指针 - 偏移，释放时在当前位置尝试提交。
// 约束：非并发安全，由 Board 加锁使用。
type Session struct {
	active  bool
	asset   model.Asset
	offset  geom.Point
	current geom.Point
}

type DragState struct {
	Dragging bool       `json:"dragging"`
	AssetID  string     `json:"assetId,omitempty"`
	Position geom.Point `json:"position"`
}

func (s *Session) State() DragState {
	if !s.active {
		return DragState{}
	}
	return DragState{Dragging: true, AssetID: s.asset.ID, Position: s.current}
}

func (s *Session) Press(asset model.Asset, pointer, current geom.Point) error {
	if s.active {
		return ErrDragActive
	}
	s.active = true
	s.asset = asset
	s.offset = geom.Point{X: pointer.X - current.X, Y: pointer.Y - current.Y}
	s.current = current
	return nil
}

func (s *Session) Move(pointer geom.Point) (geom.Point, error) {
	if !s.active {
		return geom.Point{}, ErrNotDragging
	}
	s.current = geom.Point{X: pointer.X - s.offset.X, Y: pointer.Y - s.offset.Y}
	return s.current, nil
}

// Release：结束拖动并在当前位置提交；无论提交是否被拒绝，会话都回到空闲
func (s *Session) Release(rooms []floorplan.Room, now time.Time) (CommitRequest, error) {
	if !s.active {
		return CommitRequest{}, ErrNotDragging
	}
	asset, at := s.asset, s.current
	*s = Session{}
	return Commit(asset, at, rooms, now)
}

// 文档注释：拖动看板
// 背景：全局只有一个拖动会话，同一时刻最多一个资产处于拖动中；会话记录按下时所在的楼层。
// 约束：其他楼层的按下返回 ErrDragActive；其他楼层的移动/释放视为没有拖动（ErrNotDragging），状态查询返回空闲。
type Board struct {
	mu       sync.Mutex
	s        Session
	building string
	floor    string
}

func NewBoard() *Board { return &Board{} }

func (b *Board) owns(building, floor string) bool {
	return b.s.active && b.building == building && b.floor == floor
}

func (b *Board) Press(building, floor string, asset model.Asset, pointer, current geom.Point) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.s.Press(asset, pointer, current); err != nil {
		return err
	}
	b.building, b.floor = building, floor
	return nil
}

func (b *Board) Move(building, floor string, pointer geom.Point) (geom.Point, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.owns(building, floor) {
		return geom.Point{}, ErrNotDragging
	}
	return b.s.Move(pointer)
}

// Release：同时返回被拖动的资产（落点无效时 CommitRequest 为空，调用方仍需知道是哪个资产）
func (b *Board) Release(building, floor string, rooms []floorplan.Room, now time.Time) (model.Asset, CommitRequest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.owns(building, floor) {
		return model.Asset{}, CommitRequest{}, ErrNotDragging
	}
	asset := b.s.asset
	req, err := b.s.Release(rooms, now)
	b.building, b.floor = "", ""
	return asset, req, err
}

func (b *Board) State(building, floor string) DragState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.owns(building, floor) {
		return DragState{}
	}
	return b.s.State()
}
