package store

import (
	"context"
	"fmt"
	"time"

	"floormap/internal/logger"
	"floormap/internal/placement"

	"github.com/google/uuid"
)

// 文档注释：写回一次摆放提交
// 背景：资产更新与摆放日志在同一事务内；新的摆放总是需要重新确认。
// 约束：资产不存在返回 ErrNotFound 且不写日志；RoomChanged 时同时改写 room/floor/building；
// 相对坐标超出 [0,1] 或缺少房间时返回 ErrInvalidPlacement，不开启事务。
func (s *Store) ApplyPlacement(ctx context.Context, req placement.CommitRequest) error {
	mp := req.ManualPosition()
	if !mp.Valid() {
		return fmt.Errorf("%w: %s (%v,%v)", ErrInvalidPlacement, req.AssetID, req.RelativeX, req.RelativeY)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	q := `UPDATE assets SET manual_position=$2, location_confirmed=FALSE, location_confirmed_at=NULL, last_updated=$3 WHERE id=$1`
	args := []any{req.AssetID, mp, req.UpdatedAt}
	if req.RoomChanged {
		q = `UPDATE assets SET manual_position=$2, location_confirmed=FALSE, location_confirmed_at=NULL, last_updated=$3,
			room=$4, floor=$5, building=$6 WHERE id=$1`
		args = append(args, req.RoomID, req.Floor, req.Building)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	id := uuid.New()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO placement_log(id, asset_id, room_id, relative_x, relative_y, created_at) VALUES($1,$2,$3,$4,$5,$6)`,
		id.String(), req.AssetID, req.RoomID, req.RelativeX, req.RelativeY, req.UpdatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.L().Info("placement_applied", "asset", req.AssetID, "room", req.RoomID, "room_changed", req.RoomChanged, "log_id", id.String())
	return nil
}

// 摆放历史记录
type PlacementEntry struct {
	ID        uuid.UUID `json:"id"`
	AssetID   string    `json:"assetId"`
	RoomID    string    `json:"roomId"`
	RelativeX float64   `json:"relativeX"`
	RelativeY float64   `json:"relativeY"`
	CreatedAt time.Time `json:"createdAt"`
}

// PlacementHistory：按时间倒序返回资产最近的摆放记录
func (s *Store) PlacementHistory(ctx context.Context, assetID string, limit int) ([]PlacementEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, asset_id, room_id, relative_x, relative_y, created_at FROM placement_log
		WHERE asset_id=$1 ORDER BY created_at DESC LIMIT $2`, assetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []PlacementEntry{}
	for rows.Next() {
		var e PlacementEntry
		var id string
		if err := rows.Scan(&id, &e.AssetID, &e.RoomID, &e.RelativeX, &e.RelativeY, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
