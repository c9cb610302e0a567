// GPS 定位批量导入：读取 asset_id,latitude,longitude CSV 并写入 assets 表
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"floormap/internal/cache"
	"floormap/internal/ingest"
	"floormap/internal/logger"
	"floormap/internal/store"
	"floormap/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()

	path := flag.String("csv", "", "csv file with asset_id,latitude,longitude")
	dry := flag.Bool("dry-run", false, "parse only")
	flag.Parse()
	if *path == "" {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(*path)
	if err != nil {
		l.Error("csv_open_error", "err", err)
		os.Exit(1)
	}
	defer f.Close()
	fixes, skipped, err := ingest.ReadGPSCSV(f)
	if err != nil {
		l.Error("csv_parse_error", "err", err)
		os.Exit(1)
	}
	l.Info("csv_parsed", "fixes", len(fixes), "skipped_lines", skipped)
	if *dry {
		return
	}

	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	res, err := store.AttachDB(db).BulkUpdateGPS(context.Background(), fixes)
	if err != nil {
		l.Error("gps_import_error", "err", err)
		os.Exit(1)
	}
	l.Info("gps_import_done", "updated", res.Updated, "failed", res.Failed)

	// 服务端使用 Redis 缓存时，递增受影响楼层的版本号；进程内缓存无法跨进程失效，只能等待 TTL
	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("layout_invalidate_skip", "reason", "redis_disabled")
		return
	}
	defer rc.Close()
	layouts := cache.NewLayouts(rc, 0, 0)
	seen := make(map[store.FloorRef]bool, len(res.Floors))
	for _, f := range res.Floors {
		if seen[f] {
			continue
		}
		seen[f] = true
		layouts.Invalidate(context.Background(), f.Building, f.Floor)
	}
	l.Info("layout_invalidated", "floors", len(seen))
}
