package api

import (
	"errors"
	"net/http"

	"floormap/internal/geom"
	"floormap/internal/layout"
	"floormap/internal/placement"
)

type pressBody struct {
	AssetID string  `json:"assetId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Detail  bool    `json:"detail"`
	GPS     bool    `json:"gps"`
}

type pointBody struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (h *handlers) dragState(w http.ResponseWriter, r *http.Request) {
	p, ok := h.plan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Board.State(p.Building, p.Floor))
}

// 文档注释：按下开始拖动
// 背景：资产当前位置按与渲染相同的规则解析（detail/gps 与客户端视图一致），偏移 = 指针 - 当前位置。
// 约束：资产不在本层房间或未获得位置（概览密度上限）时以指针位置作为当前位置；任一楼层已有拖动返回 409。
func (h *handlers) dragPress(w http.ResponseWriter, r *http.Request) {
	p, ok := h.plan(w, r)
	if !ok {
		return
	}
	var body pressBody
	if err := decodeBody(w, r, &body); err != nil || body.AssetID == "" {
		writeError(w, http.StatusBadRequest, "assetId required")
		return
	}
	a, err := h.Store.GetAsset(r.Context(), body.AssetID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	pointer := geom.Point{X: body.X, Y: body.Y}
	current := pointer
	if room, ok := p.Room(a.RoomID); ok {
		opt := layout.Options{UseGPS: body.GPS, Detail: body.Detail, Calibration: h.Calibrations.Get(p.Building)}
		assets, err := h.Store.ListAssets(r.Context(), p.Building, p.Floor)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		res := layout.Resolve(room, p.AssetsByRoom(assets)[room.ID], opt)
		if pos, ok := res.Position(a.ID); ok {
			current = geom.Point{X: pos.X, Y: pos.Y}
		}
	}
	if err := h.Board.Press(p.Building, p.Floor, a, pointer, current); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Board.State(p.Building, p.Floor))
}

func (h *handlers) dragMove(w http.ResponseWriter, r *http.Request) {
	p, ok := h.plan(w, r)
	if !ok {
		return
	}
	var body pointBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if _, err := h.Board.Move(p.Building, p.Floor, geom.Point{X: body.X, Y: body.Y}); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Board.State(p.Building, p.Floor))
}

// dragRelease：结束拖动并在当前位置提交；落点无效返回 422，拖动同样结束
func (h *handlers) dragRelease(w http.ResponseWriter, r *http.Request) {
	p, ok := h.plan(w, r)
	if !ok {
		return
	}
	a, req, err := h.Board.Release(p.Building, p.Floor, p.Rooms(), h.Now())
	if errors.Is(err, placement.ErrNotDragging) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.finishCommit(w, r, a, req, err)
}
