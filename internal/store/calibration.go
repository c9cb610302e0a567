package store

import (
	"context"
	"encoding/json"
	"fmt"

	"floormap/internal/gpsmap"
	"floormap/internal/logger"
)

// 文档注释：读取全部楼栋标定
// 约束：单条 JSON 损坏时跳过并记录日志，不影响其他楼栋。
func (s *Store) LoadCalibrations(ctx context.Context) ([]gpsmap.Calibration, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT building, reference_points FROM building_calibrations ORDER BY building")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []gpsmap.Calibration
	for rows.Next() {
		var (
			building string
			raw      []byte
		)
		if err := rows.Scan(&building, &raw); err != nil {
			return nil, err
		}
		cal := gpsmap.Calibration{Building: building}
		if err := json.Unmarshal(raw, &cal.ReferencePoints); err != nil {
			logger.L().Warn("calibration_decode_error", "building", building, "err", err)
			continue
		}
		out = append(out, cal)
	}
	return out, rows.Err()
}

// SaveCalibration：校验后按楼栋 upsert
func (s *Store) SaveCalibration(ctx context.Context, cal gpsmap.Calibration) error {
	if err := cal.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(cal.ReferencePoints)
	if err != nil {
		return fmt.Errorf("encode reference points: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO building_calibrations(building, reference_points, updated_at)
		VALUES($1,$2,$3)
		ON CONFLICT (building) DO UPDATE SET reference_points=EXCLUDED.reference_points, updated_at=EXCLUDED.updated_at`,
		cal.Building, string(raw), s.now().UTC())
	return err
}
