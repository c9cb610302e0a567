package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"floormap/internal/floorplan"
	"floormap/internal/geom"
	"floormap/internal/gpsmap"
	"floormap/internal/layout"
	"floormap/internal/model"
	"floormap/internal/placement"
	"floormap/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// memStore：内存实现，行为与 store.Store 一致
type memStore struct {
	mu      sync.Mutex
	assets  map[string]model.Asset
	cals    []gpsmap.Calibration
	applied []placement.CommitRequest
	failAll error
}

func newMemStore(assets ...model.Asset) *memStore {
	m := &memStore{assets: make(map[string]model.Asset)}
	for _, a := range assets {
		m.assets[a.ID] = a
	}
	return m
}

func (m *memStore) ListAssets(ctx context.Context, building, floor string) ([]model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	var out []model.Asset
	for _, a := range m.assets {
		if (building == "" || a.Building == building) && (floor == "" || a.Floor == floor) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetAsset(ctx context.Context, id string) (model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return model.Asset{}, store.ErrNotFound
	}
	return a, nil
}

func (m *memStore) ApplyPlacement(ctx context.Context, req placement.CommitRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	a, ok := m.assets[req.AssetID]
	if !ok {
		return store.ErrNotFound
	}
	placement.Apply(&a, req)
	m.assets[a.ID] = a
	m.applied = append(m.applied, req)
	return nil
}

func (m *memStore) ConfirmLocation(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return store.ErrNotFound
	}
	a.LocationConfirmed = true
	a.LocationConfirmedAt = &at
	m.assets[id] = a
	return nil
}

func (m *memStore) UpdateGPS(ctx context.Context, id string, lat, lng float64) (store.FloorRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return store.FloorRef{}, store.ErrNotFound
	}
	a.Latitude, a.Longitude = model.Float(lat), model.Float(lng)
	m.assets[id] = a
	return store.FloorRef{Building: a.Building, Floor: a.Floor}, nil
}

func (m *memStore) BulkUpdateGPS(ctx context.Context, fixes []model.GPSFix) (store.BulkResult, error) {
	res := store.BulkResult{Failed: []string{}}
	for _, f := range fixes {
		if f.Validate() != nil {
			res.Failed = append(res.Failed, f.AssetID)
			continue
		}
		ref, err := m.UpdateGPS(ctx, f.AssetID, f.Latitude, f.Longitude)
		if err != nil {
			res.Failed = append(res.Failed, f.AssetID)
			continue
		}
		res.Updated++
		res.Floors = append(res.Floors, ref)
	}
	return res, nil
}

func (m *memStore) SaveCalibration(ctx context.Context, cal gpsmap.Calibration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cals = append(m.cals, cal)
	return nil
}

func (m *memStore) PlacementHistory(ctx context.Context, assetID string, limit int) ([]store.PlacementEntry, error) {
	return []store.PlacementEntry{}, nil
}

func htbCalibration() gpsmap.Calibration {
	return gpsmap.Calibration{Building: "HTB", ReferencePoints: []gpsmap.ReferencePoint{
		{GPS: gpsmap.LatLng{Lat: 10, Lng: 20}, Local: geom.Point{X: 0, Y: 0}},
		{GPS: gpsmap.LatLng{Lat: 10, Lng: 21}, Local: geom.Point{X: 200, Y: 0}},
		{GPS: gpsmap.LatLng{Lat: 9, Lng: 20}, Local: geom.Point{X: 0, Y: 100}},
		{GPS: gpsmap.LatLng{Lat: 9, Lng: 21}, Local: geom.Point{X: 200, Y: 100}},
	}}
}

type fixture struct {
	st  *memStore
	mux *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newWrappedFixture(t, nil)
}

// newWrappedFixture：wrap 非空时路由使用包装后的持久层
func newWrappedFixture(t *testing.T, wrap func(*memStore) AssetStore) *fixture {
	t.Helper()
	set := floorplan.NewSet()
	for _, r := range []struct {
		id     string
		x0, x1 float64
	}{{"R101", 0, 100}, {"R102", 100, 200}} {
		room, err := floorplan.NewRoom(r.id, r.id, "HTB", "1F", floorplan.CategoryOffice, []geom.Point{
			{X: r.x0, Y: 0}, {X: r.x1, Y: 0}, {X: r.x1, Y: 100}, {X: r.x0, Y: 100},
		})
		require.NoError(t, err)
		set.Add(room)
	}
	upstairs, err := floorplan.NewRoom("R201", "R201", "HTB", "2F", floorplan.CategoryOffice, []geom.Point{
		{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100},
	})
	require.NoError(t, err)
	set.Add(upstairs)
	reg, err := gpsmap.NewRegistry(htbCalibration())
	require.NoError(t, err)
	st := newMemStore(
		model.Asset{ID: "A1", Name: "Laptop", Building: "HTB", Floor: "1F", RoomID: "R101"},
		model.Asset{ID: "A2", Name: "Scope", Building: "HTB", Floor: "1F", RoomID: "R101",
			Latitude: model.Float(9.5), Longitude: model.Float(20.25)},
		model.Asset{ID: "A3", Name: "Cart", Building: "HTB", Floor: "1F", RoomID: "R102", LocationConfirmed: true},
	)
	var as AssetStore = st
	if wrap != nil {
		as = wrap(st)
	}
	mux := BuildRoutes(Deps{Store: as, Plans: set, Calibrations: reg, Now: func() time.Time { return fixedNow }})
	return &fixture{st: st, mux: mux}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestAssetsEndpoints(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/assets?building=HTB&floor=1F", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Asset](t, rec), 3)

	rec = f.do(t, "GET", "/assets/A2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Scope", decode[model.Asset](t, rec).Name)

	rec = f.do(t, "GET", "/assets/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLayoutEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/floors/HTB/1F/layout?detail=true&gps=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[layoutResponse](t, rec)
	require.Len(t, resp.Rooms, 2)
	assert.False(t, resp.Cached)

	p, ok := resp.Rooms[0].Position("A2")
	require.True(t, ok)
	assert.Equal(t, layout.SourceGPS, p.Source)
	assert.InDelta(t, 50, p.X, 1e-9)
	p, ok = resp.Rooms[1].Position("A3")
	require.True(t, ok)
	assert.Equal(t, layout.SourceAutoGrid, p.Source)

	rec = f.do(t, "GET", "/floors/HTB/1F/layout?detail=true&gps=true", nil)
	assert.True(t, decode[layoutResponse](t, rec).Cached)

	rec = f.do(t, "GET", "/floors/HTB/1F/layout?room=R102", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[layoutResponse](t, rec).Rooms, 1)

	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/floors/HTB/1F/layout?room=R999", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/floors/HTB/9F/layout", nil).Code)
}

// racingStore：首次 ListAssets 读取快照后执行 during，模拟读库期间的并发写入
type racingStore struct {
	*memStore
	once   sync.Once
	during func()
}

func (s *racingStore) ListAssets(ctx context.Context, building, floor string) ([]model.Asset, error) {
	out, err := s.memStore.ListAssets(ctx, building, floor)
	s.once.Do(s.during)
	return out, err
}

func TestLayoutNotCachedAcrossConcurrentPlacement(t *testing.T) {
	rs := &racingStore{}
	f := newWrappedFixture(t, func(m *memStore) AssetStore {
		rs.memStore = m
		return rs
	})
	rs.during = func() {
		rec := f.do(t, "POST", "/assets/A1/placement", placementBody{X: 10, Y: 10})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	const path = "/floors/HTB/1F/layout?room=R101&detail=true"

	rec := f.do(t, "GET", path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p, ok := decode[layoutResponse](t, rec).Rooms[0].Position("A1")
	require.True(t, ok)
	assert.Equal(t, layout.SourceAutoGrid, p.Source, "snapshot read before the placement")

	rec = f.do(t, "GET", path, nil)
	resp := decode[layoutResponse](t, rec)
	assert.False(t, resp.Cached)
	p, ok = resp.Rooms[0].Position("A1")
	require.True(t, ok)
	assert.Equal(t, layout.SourceManual, p.Source)
	assert.InDelta(t, 10, p.X, 1e-9)
	assert.InDelta(t, 10, p.Y, 1e-9)

	assert.True(t, decode[layoutResponse](t, f.do(t, "GET", path, nil)).Cached)
}

func TestLayoutStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.st.failAll = errors.New("db down")
	rec := f.do(t, "GET", "/floors/HTB/1F/layout", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPlacementCommit(t *testing.T) {
	f := newFixture(t)
	// warm the cache so the commit has something to invalidate
	f.do(t, "GET", "/floors/HTB/1F/layout?detail=true", nil)

	rec := f.do(t, "POST", "/assets/A3/placement", placementBody{X: 50, Y: 25})
	require.Equal(t, http.StatusOK, rec.Code)
	req := decode[placement.CommitRequest](t, rec)
	assert.Equal(t, "R101", req.RoomID)
	assert.True(t, req.RoomChanged)
	assert.InDelta(t, 0.5, req.RelativeX, 1e-9)
	assert.InDelta(t, 0.25, req.RelativeY, 1e-9)

	a, err := f.st.GetAsset(context.Background(), "A3")
	require.NoError(t, err)
	assert.Equal(t, "R101", a.RoomID)
	assert.False(t, a.LocationConfirmed)

	rec = f.do(t, "GET", "/floors/HTB/1F/layout?detail=true", nil)
	resp := decode[layoutResponse](t, rec)
	assert.False(t, resp.Cached)
	p, ok := resp.Rooms[0].Position("A3")
	require.True(t, ok)
	assert.Equal(t, layout.SourceManual, p.Source)
	assert.InDelta(t, 50, p.X, 1e-9)
	assert.InDelta(t, 25, p.Y, 1e-9)
}

func TestPlacementRejected(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "POST", "/assets/A1/placement", placementBody{X: 500, Y: 50})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "drop target invalid", decode[errorBody](t, rec).Error)
	assert.Empty(t, f.st.applied)

	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", "/assets/A1/placement", "nope").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "POST", "/assets/ZZ/placement", placementBody{X: 5, Y: 5}).Code)
}

func TestConfirmAndGPS(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "POST", "/assets/A1/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	a := decode[model.Asset](t, rec)
	assert.True(t, a.LocationConfirmed)
	require.NotNil(t, a.LocationConfirmedAt)
	assert.True(t, fixedNow.Equal(*a.LocationConfirmedAt))

	rec = f.do(t, "PUT", "/assets/A1/gps", map[string]float64{"latitude": 9.2, "longitude": 20.5})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "PUT", "/assets/A1/gps", map[string]float64{"latitude": 9.2}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "PUT", "/assets/A1/gps", map[string]float64{"latitude": 99, "longitude": 0}).Code)

	rec = f.do(t, "POST", "/assets/gps/bulk", []model.GPSFix{
		{AssetID: "A1", Latitude: 9.1, Longitude: 20.1},
		{AssetID: "ZZ", Latitude: 9.1, Longitude: 20.1},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[store.BulkResult](t, rec)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, []string{"ZZ"}, res.Failed)
}

func TestCalibrationEndpoints(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/buildings/HTB/calibration", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[gpsmap.Calibration](t, rec).ReferencePoints, 4)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/buildings/NOPE/calibration", nil).Code)

	rec = f.do(t, "GET", "/buildings/HTB/project?lat=9.5&lng=20.5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	proj := decode[gpsmap.Projection](t, rec)
	assert.InDelta(t, 100, proj.X, 1e-9)
	assert.InDelta(t, 50, proj.Y, 1e-9)
	assert.True(t, proj.InBounds)

	rec = f.do(t, "GET", "/buildings/HTB/unproject?x=100&y=50", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ll := decode[gpsmap.LatLng](t, rec)
	assert.InDelta(t, 9.5, ll.Lat, 1e-9)
	assert.InDelta(t, 20.5, ll.Lng, 1e-9)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "GET", "/buildings/HTB/project?lat=x", nil).Code)

	rec = f.do(t, "GET", "/buildings/HTB/locate?lat=9.5&lng=20.75", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	loc := decode[locateResponse](t, rec)
	assert.Equal(t, "R102", loc.Room)
	assert.Equal(t, "1F", loc.Floor)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/buildings/HTB/locate?lat=12&lng=20.75", nil).Code)

	moved := htbCalibration()
	moved.ReferencePoints[0].GPS.Lat = 11
	moved.ReferencePoints[1].GPS.Lat = 11
	rec = f.do(t, "PUT", "/buildings/HTB/calibration", moved)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.st.cals, 1)

	bad := htbCalibration()
	bad.ReferencePoints = bad.ReferencePoints[:3]
	assert.Equal(t, http.StatusBadRequest, f.do(t, "PUT", "/buildings/HTB/calibration", bad).Code)
}

func TestProjectRejectsNonFinite(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{
		"/buildings/HTB/project?lat=NaN&lng=20.5",
		"/buildings/HTB/project?lat=9.5&lng=-Inf",
		"/buildings/HTB/unproject?x=Inf&y=1",
		"/buildings/HTB/locate?lat=nan&lng=20.5",
	} {
		rec := f.do(t, "GET", path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.NotEmpty(t, decode[errorBody](t, rec).Error, path)
	}
}

func TestDragFlow(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "POST", "/floors/HTB/1F/drag/release", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// with GPS on A1 is the only auto-grid asset in R101, so it sits at the centre (50,50)
	rec = f.do(t, "POST", "/floors/HTB/1F/drag/press", pressBody{AssetID: "A1", X: 52, Y: 48, Detail: true, GPS: true})
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[placement.DragState](t, rec)
	assert.True(t, st.Dragging)

	rec = f.do(t, "POST", "/floors/HTB/1F/drag/press", pressBody{AssetID: "A3", X: 1, Y: 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, "POST", "/floors/HTB/1F/drag/move", pointBody{X: 152, Y: 78})
	require.Equal(t, http.StatusOK, rec.Code)
	st = decode[placement.DragState](t, rec)
	assert.InDelta(t, 150, st.Position.X, 1e-9)
	assert.InDelta(t, 80, st.Position.Y, 1e-9)

	rec = f.do(t, "POST", "/floors/HTB/1F/drag/release", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	req := decode[placement.CommitRequest](t, rec)
	assert.Equal(t, "A1", req.AssetID)
	assert.Equal(t, "R102", req.RoomID)

	rec = f.do(t, "GET", "/floors/HTB/1F/drag", nil)
	assert.False(t, decode[placement.DragState](t, rec).Dragging)
}

func TestDragOneAssetAcrossFloors(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/floors/HTB/1F/drag/press", pressBody{AssetID: "A1", X: 10, Y: 10}).Code)

	assert.Equal(t, http.StatusConflict, f.do(t, "POST", "/floors/HTB/2F/drag/press", pressBody{AssetID: "A3", X: 10, Y: 10}).Code)
	assert.False(t, decode[placement.DragState](t, f.do(t, "GET", "/floors/HTB/2F/drag", nil)).Dragging)
	assert.Equal(t, http.StatusConflict, f.do(t, "POST", "/floors/HTB/2F/drag/release", nil).Code)
	assert.Empty(t, f.st.applied)

	require.Equal(t, http.StatusOK, f.do(t, "POST", "/floors/HTB/1F/drag/release", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, "POST", "/floors/HTB/2F/drag/press", pressBody{AssetID: "A3", X: 10, Y: 10}).Code)
}

func TestDragReleaseOutside(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/floors/HTB/1F/drag/press", pressBody{AssetID: "A1", X: 10, Y: 10}).Code)
	require.Equal(t, http.StatusOK, f.do(t, "POST", "/floors/HTB/1F/drag/move", pointBody{X: 900, Y: 900}).Code)
	rec := f.do(t, "POST", "/floors/HTB/1F/drag/release", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, f.st.applied)
	assert.Equal(t, http.StatusOK, f.do(t, "POST", "/floors/HTB/1F/drag/press", pressBody{AssetID: "A3", X: 150, Y: 50}).Code)
}

func TestRoomsAndHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/floors/HTB/1F/rooms", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rooms []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rooms))
	require.Len(t, rooms, 2)
	assert.Equal(t, "R101", rooms[0]["id"])
	assert.NotNil(t, rooms[0]["bbox"])

	rec = f.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
