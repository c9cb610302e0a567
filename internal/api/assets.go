package api

import (
	"errors"
	"net/http"
	"strconv"

	"floormap/internal/geom"
	"floormap/internal/logger"
	"floormap/internal/metrics"
	"floormap/internal/model"
	"floormap/internal/placement"
)

func (h *handlers) listAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	assets, err := h.Store.ListAssets(r.Context(), q.Get("building"), q.Get("floor"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if assets == nil {
		assets = []model.Asset{}
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *handlers) getAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.Store.GetAsset(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handlers) placementHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := h.Store.PlacementHistory(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type placementBody struct {
	Building string  `json:"building"`
	Floor    string  `json:"floor"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// 文档注释：在绝对坐标处提交摆放
// 背景：building/floor 缺省时使用资产当前楼层；候选房间为该楼层全部房间。
// 约束：未落在任何房间返回 422 且不写库；写库失败返回 500，客户端应回滚乐观状态并重新拉取。
func (h *handlers) commitPlacement(w http.ResponseWriter, r *http.Request) {
	var body placementBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	a, err := h.Store.GetAsset(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	building, floor := body.Building, body.Floor
	if building == "" {
		building = a.Building
	}
	if floor == "" {
		floor = a.Floor
	}
	p, ok := h.Plans.Plan(building, floor)
	if !ok {
		writeError(w, http.StatusNotFound, "floor plan not found")
		return
	}
	req, err := placement.Commit(a, geom.Point{X: body.X, Y: body.Y}, p.Rooms(), h.Now())
	h.finishCommit(w, r, a, req, err)
}

// finishCommit：提交结果写库并失效相关楼层缓存（拖放释放与直接提交共用）
func (h *handlers) finishCommit(w http.ResponseWriter, r *http.Request, a model.Asset, req placement.CommitRequest, err error) {
	if errors.Is(err, placement.ErrNoTargetRoom) {
		metrics.PlacementCommitsTotal.WithLabelValues("rejected").Inc()
		logger.L().Info("placement_rejected", "asset", a.ID)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Store.ApplyPlacement(r.Context(), req); err != nil {
		metrics.PlacementCommitsTotal.WithLabelValues("error").Inc()
		writeStoreError(w, r, err)
		return
	}
	metrics.PlacementCommitsTotal.WithLabelValues("ok").Inc()
	h.Layouts.Invalidate(r.Context(), a.Building, a.Floor)
	if req.Building != a.Building || req.Floor != a.Floor {
		h.Layouts.Invalidate(r.Context(), req.Building, req.Floor)
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *handlers) confirmLocation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Store.ConfirmLocation(r.Context(), id, h.Now()); err != nil {
		writeStoreError(w, r, err)
		return
	}
	a, err := h.Store.GetAsset(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type gpsBody struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *handlers) updateGPS(w http.ResponseWriter, r *http.Request) {
	var body gpsBody
	if err := decodeBody(w, r, &body); err != nil || body.Latitude == nil || body.Longitude == nil {
		writeError(w, http.StatusBadRequest, "latitude and longitude required")
		return
	}
	fix := model.GPSFix{AssetID: r.PathValue("id"), Latitude: *body.Latitude, Longitude: *body.Longitude}
	if err := fix.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ref, err := h.Store.UpdateGPS(r.Context(), fix.AssetID, fix.Latitude, fix.Longitude)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	h.Layouts.Invalidate(r.Context(), ref.Building, ref.Floor)
	writeJSON(w, http.StatusOK, map[string]any{"assetId": fix.AssetID, "building": ref.Building, "floor": ref.Floor})
}

func (h *handlers) bulkGPS(w http.ResponseWriter, r *http.Request) {
	var fixes []model.GPSFix
	if err := decodeBody(w, r, &fixes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	res, err := h.Store.BulkUpdateGPS(r.Context(), fixes)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	for _, f := range res.Floors {
		h.Layouts.Invalidate(r.Context(), f.Building, f.Floor)
	}
	writeJSON(w, http.StatusOK, res)
}
