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

package state

import (
	"context"
	"os"
	"path/filepath"

	"github.com/kubesql/postgres-user-controller/internal/configuration"
	"github.com/kubesql/postgres-user-controller/internal/management/controller/usersync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("State store", func() {
	var store *Store

	BeforeEach(func() {
		store = NewStore(&configuration.Data{
			StateFile: filepath.Join(GinkgoT().TempDir(), "users_state.json"),
		})
	})

	It("loads an empty spec when no state file exists", func(ctx context.Context) {
		spec, err := store.Load(ctx)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(spec).To(BeEmpty())
	})

	It("round-trips a spec through the file", func(ctx context.Context) {
		spec := usersync.Spec{
			"alice": {
				Username:   "alice",
				Database:   "app",
				Roles:      []string{"ro", "rw"},
				Privileges: map[string][]string{"public": {"USAGE"}},
			},
			"bob": {Username: "bob", Database: "app"},
		}
		Expect(store.Save(ctx, spec)).To(Succeed())

		loaded, err := store.Load(ctx)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(loaded).To(Equal(spec))
	})

	It("replaces the previous content on save", func(ctx context.Context) {
		Expect(store.Save(ctx, usersync.Spec{"alice": {Username: "alice"}})).To(Succeed())
		Expect(store.Save(ctx, usersync.Spec{"bob": {Username: "bob"}})).To(Succeed())

		loaded, err := store.Load(ctx)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(loaded).To(HaveLen(1))
		Expect(loaded).To(HaveKey("bob"))
	})

	It("starts fresh from a corrupted state file", func(ctx context.Context) {
		Expect(os.WriteFile(store.path, []byte("not json at all"), 0o600)).To(Succeed())

		spec, err := store.Load(ctx)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(spec).To(BeEmpty())
	})

	It("starts fresh from a state file holding null", func(ctx context.Context) {
		Expect(os.WriteFile(store.path, []byte("null"), 0o600)).To(Succeed())

		spec, err := store.Load(ctx)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(spec).ToNot(BeNil())
		Expect(spec).To(BeEmpty())
	})

	It("creates the parent directory of the state file", func(ctx context.Context) {
		store = NewStore(&configuration.Data{
			StateFile: filepath.Join(GinkgoT().TempDir(), "nested", "dir", "state.json"),
		})
		Expect(store.Save(ctx, usersync.Spec{})).To(Succeed())

		spec, err := store.Load(ctx)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(spec).To(BeEmpty())
	})
})
