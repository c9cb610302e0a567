// 包 placement：拖放摆放的提交与拖动会话
package placement

import (
	"context"
	"errors"
	"time"

	"floormap/internal/floorplan"
	"floormap/internal/geom"
	"floormap/internal/model"
)

// 放置点不在任何房间多边形内（对用户提示 "drop target invalid"）
var ErrNoTargetRoom = errors.New("drop target invalid")

var ErrInvalidPoint = errors.New("drop point not finite")

// 文档注释：提交请求（交由持久层写回）
// 约束：RelativeX/RelativeY 已夹紧到 [0,1]；RoomChanged 为真时持久层同时改写资产的 room/floor。
type CommitRequest struct {
	AssetID     string    `json:"assetId"`
	RoomID      string    `json:"roomId"`
	Floor       string    `json:"floor"`
	Building    string    `json:"building"`
	RelativeX   float64   `json:"relativeX"`
	RelativeY   float64   `json:"relativeY"`
	UpdatedAt   time.Time `json:"updatedAt"`
	RoomChanged bool      `json:"roomChanged"`
}

// ManualPosition：写入 assets.manual_position 的值
func (c CommitRequest) ManualPosition() *model.ManualPosition {
	return &model.ManualPosition{RoomID: c.RoomID, RelativeX: c.RelativeX, RelativeY: c.RelativeY, UpdatedAt: c.UpdatedAt}
}

// AssetUpdater：资产写回边界，store.Store 实现
type AssetUpdater interface {
	ApplyPlacement(ctx context.Context, req CommitRequest) error
}

// 文档注释：在绝对坐标 p 处提交资产摆放
// 约束：按 rooms 顺序取第一个包含 p 的房间；没有命中返回 ErrNoTargetRoom，不生成任何写入。
// p 含 NaN/Inf 时返回 ErrInvalidPoint。
func Commit(asset model.Asset, p geom.Point, rooms []floorplan.Room, now time.Time) (CommitRequest, error) {
	if !p.Finite() {
		return CommitRequest{}, ErrInvalidPoint
	}
	target, ok := floorplan.FindRoom(p, rooms)
	if !ok {
		return CommitRequest{}, ErrNoTargetRoom
	}
	rel := geom.ToRelative(p, target.Vertices)
	return CommitRequest{
		AssetID:     asset.ID,
		RoomID:      target.ID,
		Floor:       target.Floor,
		Building:    target.Building,
		RelativeX:   rel.X,
		RelativeY:   rel.Y,
		UpdatedAt:   now.UTC(),
		RoomChanged: target.ID != asset.RoomID || target.Floor != asset.Floor,
	}, nil
}

// Apply：把提交结果应用到内存中的资产（乐观更新，写库失败时调用方重新拉取）
func Apply(a *model.Asset, req CommitRequest) {
	a.ManualPosition = req.ManualPosition()
	a.LocationConfirmed = false
	a.LocationConfirmedAt = nil
	if req.RoomChanged {
		a.RoomID = req.RoomID
		a.Floor = req.Floor
		a.Building = req.Building
	}
	a.UpdatedAt = req.UpdatedAt
}
