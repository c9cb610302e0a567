// 标定调试工具：GPS ↔ 平面图坐标换算，可选将标定文件写入数据库
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"floormap/internal/gpsmap"
	"floormap/internal/logger"
	"floormap/internal/migrate"
	"floormap/internal/store"
	"floormap/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()

	path := flag.String("file", utils.EnvString("CALIBRATION_PATH", filepath.Join("data", "calibration", "buildings.json")), "calibration json file")
	building := flag.String("building", "", "building name")
	lat := flag.Float64("lat", 0, "latitude to project")
	lng := flag.Float64("lng", 0, "longitude to project")
	x := flag.Float64("x", 0, "local x to unproject")
	y := flag.Float64("y", 0, "local y to unproject")
	save := flag.Bool("save", false, "upsert every calibration in -file into postgres")
	flag.Parse()

	cals, err := gpsmap.LoadFile(*path)
	if err != nil {
		l.Error("calibration_file_error", "err", err)
		os.Exit(1)
	}
	reg, err := gpsmap.NewRegistry(cals...)
	if err != nil {
		l.Error("calibration_invalid", "err", err)
		os.Exit(1)
	}

	if *save {
		if err := saveAll(cals); err != nil {
			l.Error("calibration_save_error", "err", err)
			os.Exit(1)
		}
		l.Info("calibration_saved", "count", len(cals))
		return
	}

	if *building == "" {
		fmt.Println("buildings:", reg.Buildings())
		return
	}
	cal := reg.Get(*building)
	if cal == nil {
		l.Error("calibration_missing", "building", *building)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	seen := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { seen[f.Name] = true })
	if seen["lat"] || seen["lng"] {
		proj, _ := gpsmap.Project(*lat, *lng, cal)
		_ = enc.Encode(proj)
	}
	if seen["x"] || seen["y"] {
		ll, _ := gpsmap.Unproject(*x, *y, cal)
		_ = enc.Encode(ll)
	}
}

func saveAll(cals []gpsmap.Calibration) error {
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migrate.EnsureSchema(db); err != nil {
		return err
	}
	st := store.AttachDB(db)
	for _, c := range cals {
		if err := st.SaveCalibration(context.Background(), c); err != nil {
			return fmt.Errorf("%s: %w", c.Building, err)
		}
	}
	return nil
}
