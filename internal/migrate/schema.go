package migrate

import (
	"database/sql"

	"floormap/internal/logger"
)

// 背景：首次运行自动创建所需表与索引
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；assets 列名与既有数据（lat/lon/room/manual_position）保持一致
var schema = []string{
	`CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		building TEXT NOT NULL DEFAULT '',
		floor TEXT NOT NULL DEFAULT '',
		room TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION,
		lon DOUBLE PRECISION,
		manual_position JSONB,
		location_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		location_confirmed_at TIMESTAMPTZ,
		inventory_status TEXT NOT NULL DEFAULT '',
		last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assets_building_floor ON assets(building, floor)`,
	`CREATE TABLE IF NOT EXISTS building_calibrations (
		building TEXT PRIMARY KEY,
		reference_points JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS placement_log (
		id UUID PRIMARY KEY,
		asset_id TEXT NOT NULL,
		room_id TEXT NOT NULL,
		relative_x DOUBLE PRECISION NOT NULL,
		relative_y DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_placement_log_asset ON placement_log(asset_id, created_at)`,
}

func EnsureSchema(db *sql.DB) error {
	for i, s := range schema {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
