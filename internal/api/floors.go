package api

import (
	"net/http"
	"time"

	"floormap/internal/cache"
	"floormap/internal/floorplan"
	"floormap/internal/geom"
	"floormap/internal/layout"
	"floormap/internal/metrics"
	"floormap/internal/model"
)

type roomView struct {
	floorplan.Room
	BBox geom.BBox `json:"bbox"`
}

func (h *handlers) rooms(w http.ResponseWriter, r *http.Request) {
	p, ok := h.plan(w, r)
	if !ok {
		return
	}
	out := make([]roomView, 0, len(p.Rooms()))
	for _, room := range p.Rooms() {
		out = append(out, roomView{Room: room, BBox: room.BBox()})
	}
	writeJSON(w, http.StatusOK, out)
}

type layoutResponse struct {
	Building string          `json:"building"`
	Floor    string          `json:"floor"`
	Detail   bool            `json:"detail"`
	GPS      bool            `json:"gps"`
	Rooms    []layout.Result `json:"rooms"`
	Cached   bool            `json:"cached"`
}

// 文档注释：解析楼层（或单个房间）的资产显示位置
// 背景：room 为空时解析整层；detail=true 为房间放大视图（无密度上限）；gps=true 启用 GPS 定位。
func (h *handlers) layout(w http.ResponseWriter, r *http.Request) {
	p, ok := h.plan(w, r)
	if !ok {
		return
	}
	key := cache.Key{
		Building: p.Building,
		Floor:    p.Floor,
		Room:     r.URL.Query().Get("room"),
		Detail:   queryBool(r, "detail"),
		GPS:      queryBool(r, "gps"),
	}
	var room floorplan.Room
	if key.Room != "" {
		if room, ok = p.Room(key.Room); !ok {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
	}
	resp := layoutResponse{Building: p.Building, Floor: p.Floor, Detail: key.Detail, GPS: key.GPS}
	ck := h.Layouts.KeyFor(r.Context(), key)
	if cached, ok := h.Layouts.Get(r.Context(), ck); ok {
		resp.Rooms, resp.Cached = cached, true
		writeJSON(w, http.StatusOK, resp)
		return
	}

	assets, err := h.Store.ListAssets(r.Context(), p.Building, p.Floor)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	opt := layout.Options{UseGPS: key.GPS, Detail: key.Detail, Calibration: h.Calibrations.Get(p.Building)}
	resp.Rooms = h.resolve(p, room, assets, opt)
	h.Layouts.Set(r.Context(), ck, resp.Rooms)
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) resolve(p *floorplan.Plan, room floorplan.Room, assets []model.Asset, opt layout.Options) []layout.Result {
	begin := time.Now()
	mode := "overview"
	if opt.Detail {
		mode = "detail"
	}
	metrics.LayoutRequestsTotal.WithLabelValues(mode).Inc()
	var out []layout.Result
	if room.ID != "" {
		out = []layout.Result{layout.Resolve(room, p.AssetsByRoom(assets)[room.ID], opt)}
	} else {
		out = layout.ResolvePlan(p, assets, opt)
	}
	for _, res := range out {
		for _, pos := range res.Positions {
			metrics.ResolvedPositionsTotal.WithLabelValues(string(pos.Source)).Inc()
		}
		metrics.OmittedAssetsTotal.Add(float64(len(res.Omitted)))
	}
	metrics.LayoutDurationMs.Observe(float64(time.Since(begin).Microseconds()) / 1000)
	return out
}
