/*
Copyright The Postgres User Controller Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package url holds the constants for webserver routing
package url

const (
	// MetricsPort is the default port for the exporter of reconciliation metrics (HTTP)
	MetricsPort int = 9187

	// PathMetrics is the URL path for Metrics
	PathMetrics string = "/metrics"

	// PathHealth is the URL path for Health State
	PathHealth string = "/healthz"
)
