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

// Package versions contains the version of the controller and the
// build information injected at release time
package versions

const (
	// Version is the version of the controller
	Version = "0.4.0"
)

var (
	// buildCommit is injected at build time via ldflags
	buildCommit = "none"

	// buildDate is injected at build time via ldflags
	buildDate = "unknown"
)

// BuildInfo contains all the needed information about the built binary
type BuildInfo struct {
	Version, Commit, Date string
}

// Info reports the build information of the running binary
var Info = BuildInfo{
	Version: Version,
	Commit:  buildCommit,
	Date:    buildDate,
}
