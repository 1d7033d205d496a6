// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package certification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type registryMetrics struct {
	issued       prometheus.Counter
	verified     prometheus.Counter
	scoreUpdates prometheus.Counter
	transfers    prometheus.Counter
	totalSupply  prometheus.Gauge
	errors       *prometheus.CounterVec
}

func (m *registryMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.issued = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "herita_certifications_issued_total",
			Help: "total certifications issued",
		},
	)
	m.verified = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "herita_certifications_verified_total",
			Help: "total certifications verified",
		},
	)
	m.scoreUpdates = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "herita_certifications_score_updates_total",
			Help: "total ESG score updates",
		},
	)
	m.transfers = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "herita_certifications_transfers_total",
			Help: "total certification holder transfers",
		},
	)
	m.totalSupply = promautoFactory.NewGauge(
		prometheus.GaugeOpts{
			Name: "herita_certifications_supply",
			Help: "number of certifications in the registry",
		},
	)
	m.errors = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herita_certification_errors_total",
			Help: "failed registry operations by operation and reason",
		},
		[]string{"op", "reason"},
	)
}
