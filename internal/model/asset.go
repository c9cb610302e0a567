// 包 model：资产记录及其手动摆放位置
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"floormap/internal/geom"
)

// 文档注释：手动摆放位置（持久化到 assets.manual_position jsonb 列）
// 背景：字段名与既有数据保持一致（room_id / relative_x / relative_y / position_updated_at）。
// 约束：RoomID 与资产当前所在房间不一致时视为过期，解析阶段按缺失处理；
// Valid 为写入侧校验（相对坐标须在 [0,1]）。
type ManualPosition struct {
	RoomID    string    `json:"room_id"`
	RelativeX float64   `json:"relative_x"`
	RelativeY float64   `json:"relative_y"`
	UpdatedAt time.Time `json:"position_updated_at"`
}

func (m *ManualPosition) Valid() bool {
	if m == nil || m.RoomID == "" {
		return false
	}
	return m.RelativeX >= 0 && m.RelativeX <= 1 && m.RelativeY >= 0 && m.RelativeY <= 1
}

func (m *ManualPosition) Relative() geom.Relative {
	return geom.Relative{X: m.RelativeX, Y: m.RelativeY}
}

// Value：写入 jsonb；nil 写入 NULL
func (m *ManualPosition) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan：从 jsonb 读取；NULL 与空对象保持零值
func (m *ManualPosition) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("manual_position: unsupported type %T", src)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, m)
}

// 文档注释：资产
// 背景：RoomID/Floor/Building 为权威位置元数据，与像素位置无关；经纬度为最近一次 GPS 定位，可缺失。
// LocationConfirmed 表示人工确认过摆放，与“是否有摆放”是两件事。
type Asset struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	RoomID              string          `json:"room"`
	Floor               string          `json:"floor"`
	Building            string          `json:"building"`
	Latitude            *float64        `json:"latitude,omitempty"`
	Longitude           *float64        `json:"longitude,omitempty"`
	ManualPosition      *ManualPosition `json:"manual_position,omitempty"`
	LocationConfirmed   bool            `json:"location_confirmed"`
	LocationConfirmedAt *time.Time      `json:"location_confirmed_at,omitempty"`
	InventoryStatus     string          `json:"inventory_status"`
	UpdatedAt           time.Time       `json:"last_updated"`
}

func (a *Asset) HasGPS() bool { return a.Latitude != nil && a.Longitude != nil }

// 文档注释：返回在指定房间内仍有效的手动位置
// 约束：只要求房间一致且坐标为有限值；略超出 [0,1] 的相对坐标由 geom.ToAbsolute 夹紧，
// 写入侧的严格校验见 Valid。
func (a *Asset) ManualIn(roomID string) (*ManualPosition, bool) {
	m := a.ManualPosition
	if m == nil || m.RoomID == "" || m.RoomID != roomID || !geom.Finite(m.RelativeX, m.RelativeY) {
		return nil, false
	}
	return m, true
}

// GPS 定位（批量更新入参）
type GPSFix struct {
	AssetID   string  `json:"assetId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

var ErrInvalidFix = errors.New("invalid gps fix")

func (f GPSFix) Validate() error {
	if f.AssetID == "" {
		return fmt.Errorf("%w: missing asset id", ErrInvalidFix)
	}
	if !geom.Finite(f.Latitude, f.Longitude) {
		return fmt.Errorf("%w: %s not finite", ErrInvalidFix, f.AssetID)
	}
	if f.Latitude < -90 || f.Latitude > 90 || f.Longitude < -180 || f.Longitude > 180 {
		return fmt.Errorf("%w: %s out of range (%f,%f)", ErrInvalidFix, f.AssetID, f.Latitude, f.Longitude)
	}
	return nil
}

func Float(v float64) *float64 { return &v }
