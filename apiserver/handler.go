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
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/czcorpus/cnc-gokit/uniresp"
	"github.com/eeshabandaru/fuel-efficient-route-tracker/feats"
	"github.com/gin-gonic/gin"
)

// coerceFloat accepts JSON numbers and strings containing a finite number
func coerceFloat(name string, v any) (float64, error) {
	var ans float64
	switch tv := v.(type) {
	case nil:
		return 0, fmt.Errorf("%w: field %s must not be null", ErrInvalidInput, name)
	case json.Number:
		f, err := tv.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: field %s is not a number", ErrInvalidInput, name)
		}
		ans = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(tv), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: field %s is not a number", ErrInvalidInput, name)
		}
		ans = f
	default:
		return 0, fmt.Errorf("%w: field %s is not a number", ErrInvalidInput, name)
	}
	if math.IsNaN(ans) || math.IsInf(ans, 0) {
		return 0, fmt.Errorf("%w: field %s must be a finite number", ErrInvalidInput, name)
	}
	return ans, nil
}

// parseFeatures extracts the feature vector from a JSON object body
func parseFeatures(body map[string]any) (feats.FeatureVector, error) {
	var ans feats.FeatureVector
	for i, name := range feats.FeatureNames {
		v, ok := body[name]
		if !ok {
			return ans, fmt.Errorf("%w: missing field %s", ErrInvalidInput, name)
		}
		f, err := coerceFloat(name, v)
		if err != nil {
			return ans, err
		}
		ans[i] = f
	}
	return ans, nil
}

func (api *apiServer) respondInvalid(ctx *gin.Context, err error) {
	predictRequests.WithLabelValues("400").Inc()
	uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
}

func (api *apiServer) handlePredict(ctx *gin.Context) {
	var body map[string]any
	dec := json.NewDecoder(ctx.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || body == nil {
		api.respondInvalid(ctx, fmt.Errorf("%w: request body must be a JSON object", ErrInvalidInput))
		return
	}
	fv, err := parseFeatures(body)
	if err != nil {
		api.respondInvalid(ctx, err)
		return
	}
	t0 := time.Now()
	ans, cached := api.app.predict(fv)
	predictDuration.Observe(time.Since(t0).Seconds())
	if cached {
		predictCacheHits.Inc()
	}
	predictRequests.WithLabelValues("200").Inc()
	uniresp.WriteJSONResponse(ctx.Writer, ans)
}
