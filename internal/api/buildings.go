package api

import (
	"net/http"
	"strconv"

	"floormap/internal/gpsmap"
	"floormap/internal/metrics"
)

func (h *handlers) calibration(w http.ResponseWriter, r *http.Request) (*gpsmap.Calibration, bool) {
	cal := h.Calibrations.Get(r.PathValue("building"))
	if cal == nil {
		writeError(w, http.StatusNotFound, "building not calibrated")
		return nil, false
	}
	return cal, true
}

func (h *handlers) getCalibration(w http.ResponseWriter, r *http.Request) {
	if cal, ok := h.calibration(w, r); ok {
		writeJSON(w, http.StatusOK, cal)
	}
}

// 文档注释：更新楼栋标定
// 约束：先写库再更新内存注册表；该楼栋所有楼层的布局缓存失效（GPS 位置随标定变化）。
func (h *handlers) putCalibration(w http.ResponseWriter, r *http.Request) {
	var cal gpsmap.Calibration
	if err := decodeBody(w, r, &cal); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cal.Building = r.PathValue("building")
	if err := cal.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Store.SaveCalibration(r.Context(), cal); err != nil {
		writeStoreError(w, r, err)
		return
	}
	if err := h.Calibrations.Update(cal); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, f := range h.Plans.Floors(cal.Building) {
		h.Layouts.Invalidate(r.Context(), cal.Building, f)
	}
	writeJSON(w, http.StatusOK, h.Calibrations.Get(cal.Building))
}

func (h *handlers) project(w http.ResponseWriter, r *http.Request) {
	lat, okLat := queryFloat(r, "lat")
	lng, okLng := queryFloat(r, "lng")
	if !okLat || !okLng {
		writeError(w, http.StatusBadRequest, "lat and lng required")
		return
	}
	cal, ok := h.calibration(w, r)
	if !ok {
		return
	}
	proj, _ := gpsmap.Project(lat, lng, cal)
	metrics.GPSProjectionsTotal.WithLabelValues(strconv.FormatBool(proj.InBounds)).Inc()
	writeJSON(w, http.StatusOK, proj)
}

func (h *handlers) unproject(w http.ResponseWriter, r *http.Request) {
	x, okX := queryFloat(r, "x")
	y, okY := queryFloat(r, "y")
	if !okX || !okY {
		writeError(w, http.StatusBadRequest, "x and y required")
		return
	}
	cal, ok := h.calibration(w, r)
	if !ok {
		return
	}
	ll, _ := gpsmap.Unproject(x, y, cal)
	writeJSON(w, http.StatusOK, ll)
}

type locateResponse struct {
	Building string            `json:"building"`
	Floor    string            `json:"floor"`
	Room     string            `json:"room"`
	Position gpsmap.Projection `json:"position"`
}

// 文档注释：GPS 定位落在哪个房间
// 背景：floor 缺省时按楼层名顺序逐层查找，取第一个命中的房间（平面图不含高度信息）。
func (h *handlers) locate(w http.ResponseWriter, r *http.Request) {
	lat, okLat := queryFloat(r, "lat")
	lng, okLng := queryFloat(r, "lng")
	if !okLat || !okLng {
		writeError(w, http.StatusBadRequest, "lat and lng required")
		return
	}
	cal, ok := h.calibration(w, r)
	if !ok {
		return
	}
	building := cal.Building
	floors := h.Plans.Floors(building)
	if f := r.URL.Query().Get("floor"); f != "" {
		floors = []string{f}
	}
	for _, f := range floors {
		p, ok := h.Plans.Plan(building, f)
		if !ok {
			continue
		}
		room, proj, found := p.LocateGPS(lat, lng, cal)
		metrics.GPSProjectionsTotal.WithLabelValues(strconv.FormatBool(proj.InBounds)).Inc()
		if found {
			writeJSON(w, http.StatusOK, locateResponse{Building: building, Floor: f, Room: room.ID, Position: proj})
			return
		}
	}
	writeError(w, http.StatusNotFound, "no room contains this fix")
}
