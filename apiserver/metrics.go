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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	predictRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelroute_predict_requests_total",
			Help: "Total number of prediction requests by response status.",
		},
		[]string{"status"},
	)
	predictCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fuelroute_predict_cache_hits_total",
		Help: "Total number of predictions served from the cache.",
	})
	predictDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fuelroute_predict_duration_seconds",
		Help:    "Duration of model inference for a single request.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})
)
