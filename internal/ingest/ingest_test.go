package ingest

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"floormap/internal/geom"
	"floormap/internal/gpsmap"
	"floormap/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadGPSCSV(t *testing.T) {
	in := "\xEF\xBB\xBFLongitude,asset_id,Latitude\n" +
		"135.1935,A1,34.6900\n" +
		"x,A2,34.69\n" +
		"135.19,,34.69\n" +
		" 135.1940 , A3 , 34.6901 \n"
	fixes, skipped, err := ReadGPSCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []model.GPSFix{
		{AssetID: "A1", Latitude: 34.69, Longitude: 135.1935},
		{AssetID: "A3", Latitude: 34.6901, Longitude: 135.194},
	}, fixes)
	assert.Equal(t, []int{3, 4}, skipped)
}

func TestReadGPSCSVSkipsNonFinite(t *testing.T) {
	in := "asset_id,latitude,longitude\n" +
		"A1,NaN,135.19\n" +
		"A2,34.69,+Inf\n" +
		"A3,95,135.19\n" +
		"A4,34.69,135.19\n"
	fixes, skipped, err := ReadGPSCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []model.GPSFix{{AssetID: "A4", Latitude: 34.69, Longitude: 135.19}}, fixes)
	assert.Equal(t, []int{2, 3, 4}, skipped)
}

func TestReadGPSCSVHeader(t *testing.T) {
	_, _, err := ReadGPSCSV(strings.NewReader(""))
	assert.Error(t, err)
	_, _, err = ReadGPSCSV(strings.NewReader("asset_id,latitude\nA1,1\n"))
	assert.ErrorContains(t, err, "longitude")
}

type fakeSource struct {
	cals  []gpsmap.Calibration
	err   error
	calls atomic.Int32
}

func (f *fakeSource) LoadCalibrations(ctx context.Context) ([]gpsmap.Calibration, error) {
	f.calls.Add(1)
	return f.cals, f.err
}

func validCal(building string) gpsmap.Calibration {
	return gpsmap.Calibration{Building: building, ReferencePoints: []gpsmap.ReferencePoint{
		{GPS: gpsmap.LatLng{Lat: 10, Lng: 20}, Local: geom.Point{X: 0, Y: 0}},
		{GPS: gpsmap.LatLng{Lat: 10, Lng: 21}, Local: geom.Point{X: 200, Y: 0}},
		{GPS: gpsmap.LatLng{Lat: 9, Lng: 20}, Local: geom.Point{X: 0, Y: 100}},
		{GPS: gpsmap.LatLng{Lat: 9, Lng: 21}, Local: geom.Point{X: 200, Y: 100}},
	}}
}

func TestRefreshCalibrations(t *testing.T) {
	reg, err := gpsmap.NewRegistry()
	require.NoError(t, err)
	src := &fakeSource{cals: []gpsmap.Calibration{validCal("HTB"), {Building: "BAD"}}}

	n, err := RefreshCalibrations(context.Background(), src, reg, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"HTB"}, reg.Buildings())

	src.err = errors.New("db down")
	_, err = RefreshCalibrations(context.Background(), src, reg, nil)
	assert.Error(t, err)
	assert.NotNil(t, reg.Get("HTB"), "registry kept on failure")
}

func TestRefreshCalibrationsReportsChanges(t *testing.T) {
	reg, err := gpsmap.NewRegistry(validCal("HTB"))
	require.NoError(t, err)
	var changed []string
	onChange := func(ctx context.Context, building string) { changed = append(changed, building) }

	src := &fakeSource{cals: []gpsmap.Calibration{validCal("HTB"), validCal("LAB"), {Building: "BAD"}}}
	_, err = RefreshCalibrations(context.Background(), src, reg, onChange)
	require.NoError(t, err)
	assert.Equal(t, []string{"LAB"}, changed, "unchanged HTB and invalid BAD not reported")

	changed = nil
	moved := validCal("HTB")
	moved.ReferencePoints[0].GPS.Lat = 11
	moved.ReferencePoints[1].GPS.Lat = 11
	src.cals = []gpsmap.Calibration{moved, validCal("LAB")}
	_, err = RefreshCalibrations(context.Background(), src, reg, onChange)
	require.NoError(t, err)
	assert.Equal(t, []string{"HTB"}, changed)

	changed = nil
	_, err = RefreshCalibrations(context.Background(), src, reg, onChange)
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestStartCalibrationRefresh(t *testing.T) {
	reg, err := gpsmap.NewRegistry()
	require.NoError(t, err)
	src := &fakeSource{cals: []gpsmap.Calibration{validCal("HTB")}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var notified atomic.Int32
	StartCalibrationRefresh(ctx, src, reg, 10*time.Millisecond, func(ctx context.Context, building string) {
		notified.Add(1)
	})
	assert.Eventually(t, func() bool { return reg.Get("HTB") != nil }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), notified.Load())

	StartCalibrationRefresh(ctx, &fakeSource{}, reg, 0, nil)
}
