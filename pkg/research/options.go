// Copyright 2025 Kadir Pekel
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
package research

import (
	"time"

	"github.com/kadirpekel/dossier/pkg/hitl"
	"github.com/kadirpekel/dossier/pkg/observability"
)

// DefaultTopN is the size of the "top" profiling choice.
const DefaultTopN = 3

type settings struct {
	metrics         observability.Metrics
	decisionTimeout time.Duration
	topN            int
}

func defaultSettings() settings {
	return settings{
		metrics:         observability.NoopMetrics{},
		decisionTimeout: hitl.DefaultTimeout,
		topN:            DefaultTopN,
	}
}

// Option configures a Service or PhaseOrchestrator.
type Option func(*settings)

// WithMetrics sets the recorder for human decisions.
func WithMetrics(m observability.Metrics) Option {
	return func(s *settings) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithDecisionTimeout bounds every wait for a human decision.
func WithDecisionTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.decisionTimeout = d
		}
	}
}

// WithTopN sets how many executives the "top" choice selects.
func WithTopN(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.topN = n
		}
	}
}
