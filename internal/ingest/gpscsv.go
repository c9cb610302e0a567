// 包 ingest：离线数据通道（GPS 定位 CSV 导入、标定定时刷新）
package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"floormap/internal/logger"
	"floormap/internal/model"
)

var requiredColumns = []string{"asset_id", "latitude", "longitude"}

// 文档注释：解析 GPS 定位 CSV
// 背景：首行为表头，列顺序不限（asset_id / latitude / longitude，大小写不敏感），容忍 UTF-8 BOM。
// 约束：坐标无法解析、非有限值或超出经纬度范围的行跳过并记录日志，返回被跳过的行号；表头缺列直接返回错误。
func ReadGPSCSV(r io.Reader) ([]model.GPSFix, []int, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("empty csv")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			return nil, nil, fmt.Errorf("csv header missing column %q", c)
		}
	}

	var (
		out     []model.GPSFix
		skipped []int
	)
	line := 1
	for {
		line++
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.L().Warn("gps_csv_row_error", "line", line, "err", err)
			skipped = append(skipped, line)
			continue
		}
		get := func(k string) string {
			if i := idx[k]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		lat, errLat := strconv.ParseFloat(get("latitude"), 64)
		lng, errLng := strconv.ParseFloat(get("longitude"), 64)
		id := get("asset_id")
		if id == "" || errLat != nil || errLng != nil {
			logger.L().Warn("gps_csv_row_skip", "line", line, "asset", id)
			skipped = append(skipped, line)
			continue
		}
		fix := model.GPSFix{AssetID: id, Latitude: lat, Longitude: lng}
		if err := fix.Validate(); err != nil {
			logger.L().Warn("gps_csv_row_skip", "line", line, "asset", id, "err", err)
			skipped = append(skipped, line)
			continue
		}
		out = append(out, fix)
	}
	return out, skipped, nil
}
