// 包 store: 提供与 PostgreSQL 的数据访问层，包含资产读取、摆放写回、GPS 更新与楼栋标定
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"floormap/internal/logger"
	"floormap/internal/model"

	_ "github.com/lib/pq"
)

var (
	ErrNotFound         = errors.New("asset not found")
	ErrInvalidPlacement = errors.New("invalid placement")
)

// Store: 数据库访问入口，持有连接池
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db, now: time.Now} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// FloorRef：资产所在楼层，用于写入后的缓存失效
type FloorRef struct {
	Building string `json:"building"`
	Floor    string `json:"floor"`
}

const assetColumns = "id, name, building, floor, room, lat, lon, manual_position, location_confirmed, location_confirmed_at, inventory_status, last_updated"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(r rowScanner) (model.Asset, error) {
	var (
		a           model.Asset
		lat, lon    sql.NullFloat64
		mp          model.ManualPosition
		confirmedAt sql.NullTime
	)
	if err := r.Scan(&a.ID, &a.Name, &a.Building, &a.Floor, &a.RoomID, &lat, &lon, &mp,
		&a.LocationConfirmed, &confirmedAt, &a.InventoryStatus, &a.UpdatedAt); err != nil {
		return model.Asset{}, err
	}
	if lat.Valid && lon.Valid {
		a.Latitude = model.Float(lat.Float64)
		a.Longitude = model.Float(lon.Float64)
	}
	if mp.RoomID != "" {
		a.ManualPosition = &mp
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		a.LocationConfirmedAt = &t
	}
	return a, nil
}

// 文档注释：按楼栋/楼层列出资产
// 约束：building 为空返回全部；floor 为空返回整栋；按 id 排序保证结果稳定。
func (s *Store) ListAssets(ctx context.Context, building, floor string) ([]model.Asset, error) {
	q := "SELECT " + assetColumns + " FROM assets"
	var args []any
	switch {
	case building != "" && floor != "":
		q += " WHERE building=$1 AND floor=$2"
		args = append(args, building, floor)
	case building != "":
		q += " WHERE building=$1"
		args = append(args, building)
	}
	q += " ORDER BY id"
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	logger.L().Debug("db_list_assets", "building", building, "floor", floor, "count", len(out))
	return out, nil
}

func (s *Store) GetAsset(ctx context.Context, id string) (model.Asset, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+assetColumns+" FROM assets WHERE id=$1", id)
	a, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Asset{}, ErrNotFound
	}
	return a, err
}

// ConfirmLocation：人工确认当前摆放
func (s *Store) ConfirmLocation(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE assets SET location_confirmed=TRUE, location_confirmed_at=$2, last_updated=$2 WHERE id=$1", id, at.UTC())
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateGPS：写入单个资产的最新定位，返回其所在楼层
func (s *Store) UpdateGPS(ctx context.Context, id string, lat, lng float64) (FloorRef, error) {
	return updateGPS(ctx, s.db, id, lat, lng, s.now())
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func updateGPS(ctx context.Context, q queryRower, id string, lat, lng float64, at time.Time) (FloorRef, error) {
	var ref FloorRef
	err := q.QueryRowContext(ctx,
		"UPDATE assets SET lat=$2, lon=$3, last_updated=$4 WHERE id=$1 RETURNING building, floor",
		id, lat, lng, at.UTC()).Scan(&ref.Building, &ref.Floor)
	if errors.Is(err, sql.ErrNoRows) {
		return FloorRef{}, ErrNotFound
	}
	return ref, err
}

// BulkResult：批量 GPS 更新结果
type BulkResult struct {
	Updated int        `json:"updated"`
	Failed  []string   `json:"failed"`
	Floors  []FloorRef `json:"-"`
}

// 文档注释：批量写入 GPS 定位
// 背景：导入工具与批量接口共用；单条非法或资产不存在记入 Failed，不中断整批。
// 约束：数据库错误回滚整批并返回错误。
func (s *Store) BulkUpdateGPS(ctx context.Context, fixes []model.GPSFix) (BulkResult, error) {
	res := BulkResult{Failed: []string{}}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback() }()
	now := s.now()
	seen := make(map[FloorRef]bool)
	for _, f := range fixes {
		if err := f.Validate(); err != nil {
			logger.L().Warn("gps_fix_invalid", "asset", f.AssetID, "err", err)
			res.Failed = append(res.Failed, f.AssetID)
			continue
		}
		ref, err := updateGPS(ctx, tx, f.AssetID, f.Latitude, f.Longitude, now)
		if errors.Is(err, ErrNotFound) {
			res.Failed = append(res.Failed, f.AssetID)
			continue
		}
		if err != nil {
			return BulkResult{}, err
		}
		res.Updated++
		if !seen[ref] {
			seen[ref] = true
			res.Floors = append(res.Floors, ref)
		}
	}
	if err := tx.Commit(); err != nil {
		return BulkResult{}, err
	}
	logger.L().Info("gps_bulk_update", "updated", res.Updated, "failed", len(res.Failed))
	return res, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
