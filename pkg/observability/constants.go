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

package observability

const (
	SpanResearchRun   = "research.run"
	SpanToolLoop      = "toolloop.run"
	SpanLLMRequest    = "toolloop.llm_request"
	SpanToolExecution = "toolloop.tool_execution"
	SpanHTTPRequest   = "http.request"

	AttrWorkflow       = "dossier.workflow"
	AttrSubject        = "dossier.subject"
	AttrToolName       = "dossier.tool.name"
	AttrToolCallID     = "dossier.tool.call_id"
	AttrToolCallCount  = "dossier.tool.call_count"
	AttrModel          = "dossier.llm.model"
	AttrInputTokens    = "dossier.llm.input_tokens"
	AttrOutputTokens   = "dossier.llm.output_tokens"
	AttrStopReason     = "dossier.llm.stop_reason"
	AttrHTTPMethod     = "http.method"
	AttrHTTPPath       = "http.path"
	AttrHTTPStatusCode = "http.status_code"

	DefaultServiceName  = "dossier"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
	DefaultNamespace    = "dossier"

	// InstrumentationName is the tracer and meter scope of this module.
	InstrumentationName = "github.com/kadirpekel/dossier"
)
