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

package configparser

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// FakeData is an example of the configuration structure
// that can be used with this configparser
type FakeData struct {
	// Namespace is the namespace the controller watches
	Namespace string `json:"namespace" env:"NAMESPACE"`

	// ManagedDatabases is a list of database names
	ManagedDatabases []string `json:"managedDatabases" env:"MANAGED_DATABASES"`

	// ExtraLabels is a list of labels applied to every managed resource
	ExtraLabels []string `json:"extraLabels" env:"EXTRA_LABELS"`

	// SyncSeconds is the pause between two reconciliations
	SyncSeconds int `json:"syncSeconds" env:"SYNC_SECONDS"`

	// BackoffBase is the base of the exponential retry backoff
	BackoffBase float64 `json:"backoffBase" env:"BACKOFF_BASE"`

	// DryRun disables every mutation when true
	DryRun bool `json:"dryRun" env:"DRY_RUN"`
}

var defaultManagedDatabases = []string{
	"app",
	"reporting",
}

const oneNamespace = "one-namespace"

// readConfigMap reads the configuration from the environment and the passed-in data map
func (config *FakeData) readConfigMap(data map[string]string) {
	ReadConfigMap(config, &FakeData{ManagedDatabases: defaultManagedDatabases}, data)
}

var _ = Describe("Data test suite", func() {
	It("correctly splits and trims lists", func() {
		list := splitAndTrim("string, with space , inside\t")
		Expect(list).To(Equal([]string{"string", "with space", "inside"}))
	})

	It("loads values from a map", func() {
		config := &FakeData{}
		GinkgoT().Setenv("NAMESPACE", "")
		GinkgoT().Setenv("MANAGED_DATABASES", "")
		GinkgoT().Setenv("EXTRA_LABELS", "")
		config.readConfigMap(map[string]string{
			"NAMESPACE":         oneNamespace,
			"MANAGED_DATABASES": "one, two",
			"EXTRA_LABELS":      "alpha, beta",
		})
		Expect(config.Namespace).To(Equal(oneNamespace))
		Expect(config.ManagedDatabases).To(Equal([]string{"one", "two"}))
		Expect(config.ExtraLabels).To(Equal([]string{"alpha", "beta"}))
	})

	It("loads values from environment", func() {
		config := &FakeData{}
		GinkgoT().Setenv("NAMESPACE", oneNamespace)
		GinkgoT().Setenv("MANAGED_DATABASES", "one, two")
		GinkgoT().Setenv("EXTRA_LABELS", "alpha, beta")
		GinkgoT().Setenv("SYNC_SECONDS", "2")
		config.readConfigMap(nil)
		Expect(config.Namespace).To(Equal(oneNamespace))
		Expect(config.ManagedDatabases).To(Equal([]string{"one", "two"}))
		Expect(config.ExtraLabels).To(Equal([]string{"alpha", "beta"}))
		Expect(config.SyncSeconds).To(Equal(2))
	})

	It("gives the environment precedence over the map", func() {
		config := &FakeData{}
		GinkgoT().Setenv("NAMESPACE", "from-environment")
		config.readConfigMap(map[string]string{
			"NAMESPACE": "from-map",
		})
		Expect(config.Namespace).To(Equal("from-environment"))
	})

	It("reset to default value if format is not correct", func() {
		config := &FakeData{
			SyncSeconds: 90,
			BackoffBase: 2.0,
		}
		GinkgoT().Setenv("SYNC_SECONDS", "3600min")
		GinkgoT().Setenv("BACKOFF_BASE", "unknown")
		defaultData := &FakeData{
			SyncSeconds: 90,
			BackoffBase: 2.0,
		}
		ReadConfigMap(config, defaultData, nil)
		Expect(config.SyncSeconds).To(Equal(90))
		Expect(config.BackoffBase).To(Equal(2.0))
	})

	It("parses float and boolean values", func() {
		config := &FakeData{}
		GinkgoT().Setenv("BACKOFF_BASE", "1.5")
		GinkgoT().Setenv("DRY_RUN", "true")
		config.readConfigMap(nil)
		Expect(config.BackoffBase).To(Equal(1.5))
		Expect(config.DryRun).To(BeTrue())
	})

	It("handles correctly default values of slices", func() {
		GinkgoT().Setenv("MANAGED_DATABASES", "")
		GinkgoT().Setenv("EXTRA_LABELS", "")
		config := &FakeData{}
		config.readConfigMap(nil)
		Expect(config.ManagedDatabases).To(Equal(defaultManagedDatabases))
		Expect(config.ExtraLabels).To(BeNil())
	})
})
