// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"floormap/internal/api"
	"floormap/internal/cache"
	"floormap/internal/floorplan"
	"floormap/internal/gpsmap"
	"floormap/internal/ingest"
	"floormap/internal/logger"
	"floormap/internal/metrics"
	"floormap/internal/middleware"
	"floormap/internal/migrate"
	"floormap/internal/placement"
	"floormap/internal/store"
	"floormap/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")
	apiBase := utils.EnvString("API_BASE", "/api")
	l.Debug("config_api_base", "base", apiBase)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	l.Info("db_open_ok")
	if err := db.PingContext(ctx); err != nil {
		l.Error("db_ping_error", "err", err)
	} else {
		l.Info("db_ping_ok")
	}
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	st := store.AttachDB(db)

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else if err := rc.Ping(ctx).Err(); err != nil {
		// 连接失败时退回进程内缓存，不阻断启动
		l.Error("redis_ping_error", "err", err)
		rc = nil
	} else {
		l.Info("redis_ping_ok")
	}

	planDir := utils.EnvString("FLOORPLAN_DIR", filepath.Join("data", "floorplans"))
	plans, err := floorplan.LoadDir(planDir)
	if err != nil {
		l.Error("floorplan_load_error", "dir", planDir, "err", err)
		os.Exit(1)
	}

	// 标定：文件为初始值，数据库中的记录覆盖同名楼栋
	reg, _ := gpsmap.NewRegistry()
	calPath := utils.EnvString("CALIBRATION_PATH", filepath.Join("data", "calibration", "buildings.json"))
	if cals, err := gpsmap.LoadFile(calPath); err == nil {
		skipped := reg.Merge(cals)
		l.Info("calibration_file_loaded", "path", calPath, "count", len(cals)-skipped, "skipped", skipped)
	} else if errors.Is(err, os.ErrNotExist) {
		l.Info("calibration_file_missing", "path", calPath)
	} else {
		l.Error("calibration_file_error", "err", err)
	}
	ttl := time.Duration(utils.EnvInt("LAYOUT_CACHE_TTL_S", 60)) * time.Second
	layouts := cache.NewLayouts(rc, ttl, utils.EnvInt("LAYOUT_CACHE_SIZE", 1024))
	// 标定变化后 GPS 定位的布局全部过期
	invalidate := func(ctx context.Context, building string) {
		for _, f := range plans.Floors(building) {
			layouts.Invalidate(ctx, building, f)
		}
		l.Info("calibration_changed", "building", building)
	}
	if n, err := ingest.RefreshCalibrations(ctx, st, reg, invalidate); err != nil {
		l.Error("calibration_db_error", "err", err)
	} else {
		l.Info("calibration_db_loaded", "count", n)
	}
	refresh := time.Duration(utils.EnvInt("CALIBRATION_REFRESH_S", 0)) * time.Second
	ingest.StartCalibrationRefresh(ctx, st, reg, refresh, invalidate)

	apiMux := api.BuildRoutes(api.Deps{
		Store:        st,
		Plans:        plans,
		Calibrations: reg,
		Layouts:      layouts,
		Board:        placement.NewBoard(),
	})

	mux := http.NewServeMux()
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())

	addr := utils.EnvString("ADDR", ":8080")
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	if utils.EnvBool("TLS_ENABLE", false) {
		certPath := utils.EnvString("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt"))
		keyPath := utils.EnvString("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key"))
		if err := utils.EnsureSelfSignedCert(certPath, keyPath, "floormap.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		err = s.ListenAndServeTLS(certPath, keyPath)
	} else {
		l.Info("listening", "addr", addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
	l.Info("server_stopped")
}
