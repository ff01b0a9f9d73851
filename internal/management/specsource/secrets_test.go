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

package specsource

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/kubesql/postgres-user-controller/internal/configuration"
	"github.com/kubesql/postgres-user-controller/pkg/management"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Secret password source", func() {
	config := &configuration.Data{
		Namespace:  "default",
		MaxRetries: 1,
	}

	newSource := func(objects ...corev1.Secret) *SecretSource {
		builder := fake.NewClientBuilder().WithScheme(management.Scheme)
		for i := range objects {
			builder = builder.WithObjects(&objects[i])
		}
		return NewSecretSource(builder.Build(), config)
	}

	It("derives the secret name from the username", func() {
		Expect(SecretNameForUser("alice")).To(Equal("user-alice-secret"))
		Expect(SecretNameForUser("alice_smith")).To(Equal("user-alice-smith-secret"))
	})

	It("returns the published password", func(ctx context.Context) {
		source := newSource(corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{
				Namespace: "default",
				Name:      "user-alice-smith-secret",
			},
			Data: map[string][]byte{PasswordSecretKey: []byte("s3cret")},
		})

		password, err := source.PasswordFor(ctx, "alice_smith")
		Expect(err).ShouldNot(HaveOccurred())
		Expect(password).To(Equal("s3cret"))
	})

	It("returns the empty string for a missing secret", func(ctx context.Context) {
		source := newSource()

		password, err := source.PasswordFor(ctx, "alice")
		Expect(err).ShouldNot(HaveOccurred())
		Expect(password).To(BeEmpty())
	})

	It("returns the empty string for a secret without the password field", func(ctx context.Context) {
		source := newSource(corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{
				Namespace: "default",
				Name:      "user-alice-secret",
			},
			Data: map[string][]byte{"token": []byte("not a password")},
		})

		password, err := source.PasswordFor(ctx, "alice")
		Expect(err).ShouldNot(HaveOccurred())
		Expect(password).To(BeEmpty())
	})

	It("returns the empty string for an empty password value", func(ctx context.Context) {
		source := newSource(corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{
				Namespace: "default",
				Name:      "user-alice-secret",
			},
			Data: map[string][]byte{PasswordSecretKey: {}},
		})

		password, err := source.PasswordFor(ctx, "alice")
		Expect(err).ShouldNot(HaveOccurred())
		Expect(password).To(BeEmpty())
	})
})
