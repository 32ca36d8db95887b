// Copyright 2025 Ewout Prangsma
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
//
// Author Ewout Prangsma
//

package publish

import (
	"github.com/binkynet/IrWorker/pkg/metrics"
)

const (
	subSystem = "publish"
)

var (
	publishedTotal       = metrics.MustRegisterCounter(subSystem, "published_total", "Total number of MQTT messages published")
	publishFailuresTotal = metrics.MustRegisterCounter(subSystem, "failures_total", "Total number of failed MQTT publications")
)
