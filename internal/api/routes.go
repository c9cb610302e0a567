// 包 api：集中注册 HTTP API 路由以解耦主入口
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"floormap/internal/cache"
	"floormap/internal/floorplan"
	"floormap/internal/geom"
	"floormap/internal/gpsmap"
	"floormap/internal/logger"
	"floormap/internal/model"
	"floormap/internal/placement"
	"floormap/internal/store"
)

// AssetStore：路由依赖的持久层操作（store.Store 实现）
type AssetStore interface {
	placement.AssetUpdater
	ListAssets(ctx context.Context, building, floor string) ([]model.Asset, error)
	GetAsset(ctx context.Context, id string) (model.Asset, error)
	ConfirmLocation(ctx context.Context, id string, at time.Time) error
	UpdateGPS(ctx context.Context, id string, lat, lng float64) (store.FloorRef, error)
	BulkUpdateGPS(ctx context.Context, fixes []model.GPSFix) (store.BulkResult, error)
	SaveCalibration(ctx context.Context, cal gpsmap.Calibration) error
	PlacementHistory(ctx context.Context, assetID string, limit int) ([]store.PlacementEntry, error)
}

// 文档注释：路由依赖
// 约束：Plans 与 Calibrations 启动时加载；Layouts/Board 为空时路由内自行创建默认实例。
type Deps struct {
	Store        AssetStore
	Plans        *floorplan.Set
	Calibrations *gpsmap.Registry
	Layouts      *cache.Layouts
	Board        *placement.Board
	Now          func() time.Time
}

type handlers struct {
	Deps
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 API_BASE 前缀
func BuildRoutes(d Deps) *http.ServeMux {
	if d.Layouts == nil {
		d.Layouts = cache.NewLayouts(nil, time.Minute, 1024)
	}
	if d.Board == nil {
		d.Board = placement.NewBoard()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Plans == nil {
		d.Plans = floorplan.NewSet()
	}
	if d.Calibrations == nil {
		d.Calibrations, _ = gpsmap.NewRegistry()
	}
	h := &handlers{Deps: d}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)

	mux.HandleFunc("GET /assets", h.listAssets)
	mux.HandleFunc("GET /assets/{id}", h.getAsset)
	mux.HandleFunc("GET /assets/{id}/placements", h.placementHistory)
	mux.HandleFunc("POST /assets/{id}/placement", h.commitPlacement)
	mux.HandleFunc("POST /assets/{id}/confirm", h.confirmLocation)
	mux.HandleFunc("PUT /assets/{id}/gps", h.updateGPS)
	mux.HandleFunc("POST /assets/gps/bulk", h.bulkGPS)

	mux.HandleFunc("GET /floors/{building}/{floor}/rooms", h.rooms)
	mux.HandleFunc("GET /floors/{building}/{floor}/layout", h.layout)
	mux.HandleFunc("GET /floors/{building}/{floor}/drag", h.dragState)
	mux.HandleFunc("POST /floors/{building}/{floor}/drag/press", h.dragPress)
	mux.HandleFunc("POST /floors/{building}/{floor}/drag/move", h.dragMove)
	mux.HandleFunc("POST /floors/{building}/{floor}/drag/release", h.dragRelease)

	mux.HandleFunc("GET /buildings/{building}/calibration", h.getCalibration)
	mux.HandleFunc("PUT /buildings/{building}/calibration", h.putCalibration)
	mux.HandleFunc("GET /buildings/{building}/project", h.project)
	mux.HandleFunc("GET /buildings/{building}/unproject", h.unproject)
	mux.HandleFunc("GET /buildings/{building}/locate", h.locate)
	return mux
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"plans":     h.Plans.Len(),
		"buildings": h.Calibrations.Buildings(),
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeStoreError：持久层错误映射为 HTTP 状态
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	if errors.Is(err, store.ErrInvalidPlacement) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.L().Error("store_error", "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "storage error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

// queryFloat：ParseFloat 接受 "NaN"/"Inf"，此处一并拒绝
func queryFloat(r *http.Request, key string) (float64, bool) {
	v, err := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	return v, err == nil && geom.Finite(v)
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

func (h *handlers) plan(w http.ResponseWriter, r *http.Request) (*floorplan.Plan, bool) {
	p, ok := h.Plans.Plan(r.PathValue("building"), r.PathValue("floor"))
	if !ok {
		writeError(w, http.StatusNotFound, "floor plan not found")
		return nil, false
	}
	return p, true
}
