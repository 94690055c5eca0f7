// Copyright 2015 Zalando SE
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

package engines

import (
	"time"

	"github.com/zalando/rose/routing"
)

// EngineMetrics measures the duration of the engines.
type EngineMetrics interface {
	MeasureEngine(engineName string, start time.Time)
}

type measured struct {
	routing.Engine
	name    string
	metrics EngineMetrics
}

// Measure wraps an engine to measure the duration of its invocations,
// including the rest of the chain invoked by it. The name of the wrapper
// is the name of the engine.
func Measure(e routing.Engine, m EngineMetrics) routing.Engine {
	return &measured{Engine: e, name: routing.EngineName(e), metrics: m}
}

func (m *measured) Name() string { return m.name }

func (m *measured) Invoke(rose *routing.Rose, mr *routing.MatchResult, instruction any, chain *routing.Chain) (any, error) {
	defer m.metrics.MeasureEngine(m.name, time.Now())
	return m.Engine.Invoke(rose, mr, instruction, chain)
}

// Unwrap returns the measured engine.
func (m *measured) Unwrap() routing.Engine { return m.Engine }
