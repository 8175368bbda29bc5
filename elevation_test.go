package grvl

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPElevationProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req elevationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Locations, 2)
		assert.InDelta(t, 45.0, req.Locations[0].Latitude, 1e-9)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"results":[
			{"latitude":45.0,"longitude":10.0,"elevation":312.5},
			{"latitude":45.1,"longitude":10.0,"elevation":null}
		]}`)
	}))
	defer srv.Close()

	provider := NewHTTPElevationProvider(srv.URL)
	values, err := provider.Elevations(context.Background(), []GeoPoint{{Lat: 45.0, Lon: 10.0}, {Lat: 45.1, Lon: 10.0}})
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.InDelta(t, 312.5, values[0], 1e-9)
	assert.True(t, math.IsNaN(values[1]))
}

func TestHTTPElevationProviderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	provider := NewHTTPElevationProvider(srv.URL)
	_, err := provider.Elevations(context.Background(), []GeoPoint{{Lat: 45.0, Lon: 10.0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestHTTPElevationProviderMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"results":[]}`)
	}))
	defer srv.Close()

	provider := NewHTTPElevationProvider(srv.URL)
	_, err := provider.Elevations(context.Background(), []GeoPoint{{Lat: 45.0, Lon: 10.0}})
	require.ErrorIs(t, err, errElevationMismatch)
}

func TestSlopeEstimatorDegradesOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	est := newTestEstimator(NewHTTPElevationProvider(srv.URL))
	line := straightLine(GeoPoint{Lat: 45, Lon: 10}, 1500, 4)
	result := est.Estimate(context.Background(), line)
	assert.Equal(t, SlopeUnknown, result.MaxSlope)
	assert.Equal(t, 1, result.FailedBatches)
}
