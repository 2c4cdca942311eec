// Copyright 2025 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2025 Department of Linguistics,
// Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package apiserver

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/eeshabandaru/fuel-efficient-route-tracker/cnf"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/eval"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/feats"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type linearPredictor struct {
	weights feats.FeatureVector
	calls   atomic.Int64
}

func (p *linearPredictor) Predict(fv feats.FeatureVector) float64 {
	p.calls.Add(1)
	var ans float64
	for i, v := range fv {
		ans += p.weights[i] * v
	}
	return ans
}

func newTestingServer(t *testing.T, cacheSize int) (*gin.Engine, *linearPredictor, *linearPredictor) {
	gin.SetMode(gin.TestMode)
	fuel := &linearPredictor{weights: feats.FeatureVector{0.1, 1, 0}}
	co2 := &linearPredictor{weights: feats.FeatureVector{0, 0, 20}}
	app, err := NewAppContext(fuel, co2, cacheSize)
	require.NoError(t, err)
	api := &apiServer{
		conf: &cnf.Conf{CorsAllowedOrigins: []string{"http://localhost:3000"}},
		app:  app,
	}
	return api.createEngine(), fuel, co2
}

func doPredict(engine *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	return w
}

func TestPredictValid(t *testing.T) {
	engine, _, _ := newTestingServer(t, 0)
	w := doPredict(
		engine,
		`{"distance": 100, "normalized_traffic_severity": 0.5, "combined_fuel_efficiency": 8.6}`,
	)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]float64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 10.5, resp["fuel_consumption"], 1e-9)
	assert.InDelta(t, 172, resp["co2_emissions"], 1e-9)
	assert.Len(t, resp, 2)
}

func TestPredictNumericStrings(t *testing.T) {
	engine, _, _ := newTestingServer(t, 0)
	w := doPredict(
		engine,
		`{"distance": "100", "normalized_traffic_severity": " 0.5", "combined_fuel_efficiency": "8.6"}`,
	)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]float64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, 10.5, resp["fuel_consumption"], 1e-9)
}

func TestPredictInvalid(t *testing.T) {
	engine, _, _ := newTestingServer(t, 0)
	cases := []struct {
		name string
		body string
	}{
		{"non-numeric", `{"distance": "abc", "normalized_traffic_severity": 0.5, "combined_fuel_efficiency": 8.6}`},
		{"missing", `{"normalized_traffic_severity": 0.5, "combined_fuel_efficiency": 8.6}`},
		{"null", `{"distance": null, "normalized_traffic_severity": 0.5, "combined_fuel_efficiency": 8.6}`},
		{"bool", `{"distance": true, "normalized_traffic_severity": 0.5, "combined_fuel_efficiency": 8.6}`},
		{"nan", `{"distance": "NaN", "normalized_traffic_severity": 0.5, "combined_fuel_efficiency": 8.6}`},
		{"inf", `{"distance": "-Inf", "normalized_traffic_severity": 0.5, "combined_fuel_efficiency": 8.6}`},
		{"array", `[100, 0.5, 8.6]`},
		{"json null", `null`},
		{"empty", ``},
		{"broken", `{"distance": 1`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := doPredict(engine, c.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			msg, ok := resp["error"].(string)
			assert.True(t, ok)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestPredictCache(t *testing.T) {
	engine, fuel, co2 := newTestingServer(t, 10)
	body := `{"distance": 50, "normalized_traffic_severity": 0.25, "combined_fuel_efficiency": 10}`
	w1 := doPredict(engine, body)
	w2 := doPredict(engine, body)
	require.Equal(t, http.StatusOK, w1.Code)
	require.Equal(t, http.StatusOK, w2.Code)
	assert.JSONEq(t, w1.Body.String(), w2.Body.String())
	assert.Equal(t, int64(1), fuel.calls.Load())
	assert.Equal(t, int64(1), co2.calls.Load())
}

func TestPredictMethodNotAllowed(t *testing.T) {
	engine, _, _ := newTestingServer(t, 0)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/predict", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestMetrics(t *testing.T) {
	engine, _, _ := newTestingServer(t, 0)
	doPredict(engine, `{"distance": 1, "normalized_traffic_severity": 1, "combined_fuel_efficiency": 1}`)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fuelroute_predict_requests_total")
}

func TestCors(t *testing.T) {
	engine, _, _ := newTestingServer(t, 0)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/predict", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewAppContextRequiresModels(t *testing.T) {
	_, err := NewAppContext(nil, &linearPredictor{}, 0)
	assert.Error(t, err)
}

func TestLoadAppContextWithTrainedModels(t *testing.T) {
	table := &feats.TrainingTable{}
	for i := 0; i < 30; i++ {
		d := float64(10 + i*5)
		e := float64(5 + i%7)
		table.Rows = append(table.Rows, feats.TrainingRow{
			Features:        feats.FeatureVector{d, float64(i%4) / 4, e},
			FuelConsumption: d / e,
			CO2Emissions:    20 * e,
		})
	}
	tconf := cnf.DefaultTrainingConf()
	tconf.Epochs = 2
	tconf.HiddenLayers = []int{4}
	result, err := eval.NewPipeline(tconf, false).Train(context.Background(), table)
	require.NoError(t, err)
	dir := t.TempDir()
	_, err = eval.SaveModels(dir, result.Models)
	require.NoError(t, err)

	app, err := LoadAppContext(&cnf.Conf{ModelsDir: dir})
	require.NoError(t, err)
	ans, _ := app.predict(feats.FeatureVector{100, 0.5, 8.6})
	assert.False(t, math.IsNaN(ans.FuelConsumption) || math.IsInf(ans.FuelConsumption, 0))
	assert.False(t, math.IsNaN(ans.CO2Emissions) || math.IsInf(ans.CO2Emissions, 0))
}

func TestLoadAppContextMissingModels(t *testing.T) {
	_, err := LoadAppContext(&cnf.Conf{ModelsDir: t.TempDir()})
	assert.Error(t, err)
}
