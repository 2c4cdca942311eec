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
	"errors"
	"fmt"

	"github.com/eeshabandaru/fuel-efficient-route-tracker/cnf"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/eval"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/feats"
	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrInvalidInput = errors.New("invalid input")

type service interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
}

// ------

type prediction struct {
	FuelConsumption float64 `json:"fuel_consumption"`
	CO2Emissions    float64 `json:"co2_emissions"`
}

// Predictor maps raw (unscaled) features to a single target value
type Predictor interface {
	Predict(feats.FeatureVector) float64
}

// AppContext holds everything the request handlers need.
// It is created once at startup and never modified afterwards.
type AppContext struct {
	fuelModel Predictor
	co2Model  Predictor

	// cache is nil if disabled
	cache *lru.Cache[feats.FeatureVector, prediction]
}

func (app *AppContext) predict(fv feats.FeatureVector) (prediction, bool) {
	if app.cache != nil {
		if ans, ok := app.cache.Get(fv); ok {
			return ans, true
		}
	}
	ans := prediction{
		FuelConsumption: app.fuelModel.Predict(fv),
		CO2Emissions:    app.co2Model.Predict(fv),
	}
	if app.cache != nil {
		app.cache.Add(fv, ans)
	}
	return ans, false
}

// NewAppContext creates an application context from the two models.
// The cacheSize value 0 disables prediction caching.
func NewAppContext(fuelModel, co2Model Predictor, cacheSize int) (*AppContext, error) {
	if fuelModel == nil || co2Model == nil {
		return nil, fmt.Errorf("both models must be provided")
	}
	ans := &AppContext{
		fuelModel: fuelModel,
		co2Model:  co2Model,
	}
	if cacheSize > 0 {
		var err error
		ans.cache, err = lru.New[feats.FeatureVector, prediction](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create prediction cache: %w", err)
		}
	}
	return ans, nil
}

// LoadAppContext loads the persisted models from the configured
// models directory.
func LoadAppContext(conf *cnf.Conf) (*AppContext, error) {
	models, err := eval.LoadModels(conf.ModelsDir)
	if err != nil {
		return nil, err
	}
	return NewAppContext(
		models[eval.TargetFuelConsumption],
		models[eval.TargetCO2Emissions],
		conf.PredictionCacheSize,
	)
}

// -----

func corsMiddleware(conf *cnf.Conf) gin.HandlerFunc {
	return func(ctx *gin.Context) {

		var allowedOrigin string
		currOrigin := ctx.Request.Header.Get("Origin")
		for _, origin := range conf.CorsAllowedOrigins {
			if currOrigin == origin || origin == "*" {
				allowedOrigin = origin
				break
			}
		}
		if allowedOrigin != "" {
			ctx.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			ctx.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			ctx.Writer.Header().Set(
				"Access-Control-Allow-Headers",
				"Content-Type, Content-Length, Accept-Encoding, Accept, Origin, Cache-Control, X-Requested-With",
			)
			ctx.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		}

		if ctx.Request.Method == "OPTIONS" {
			ctx.AbortWithStatus(204)
			return
		}
		ctx.Next()
	}
}
