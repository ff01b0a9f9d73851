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

package fileutils

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("File existence functions", func() {
	var tempDir string

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
	})

	It("reports a missing file as not existent", func() {
		result, err := FileExists(filepath.Join(tempDir, "missing.json"))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(result).To(BeFalse())
	})

	It("reports an existing file", func() {
		fileName := filepath.Join(tempDir, "present.json")
		Expect(os.WriteFile(fileName, []byte("{}"), 0o600)).To(Succeed())

		result, err := FileExists(fileName)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(result).To(BeTrue())
	})

	It("reads back file content, and nil for a missing file", func() {
		fileName := filepath.Join(tempDir, "content.json")
		Expect(os.WriteFile(fileName, []byte(`{"a":1}`), 0o600)).To(Succeed())

		content, err := ReadFile(fileName)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(content).To(Equal([]byte(`{"a":1}`)))

		content, err = ReadFile(filepath.Join(tempDir, "missing.json"))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(content).To(BeNil())
	})
})

var _ = Describe("Atomic file replacement", func() {
	var tempDir string

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
	})

	It("creates the target when absent", func() {
		fileName := filepath.Join(tempDir, "state.json")
		Expect(WriteFileAtomic(fileName, []byte("first"), 0o600)).To(Succeed())

		content, err := os.ReadFile(fileName)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(string(content)).To(Equal("first"))
	})

	It("replaces the previous content", func() {
		fileName := filepath.Join(tempDir, "state.json")
		Expect(WriteFileAtomic(fileName, []byte("first"), 0o600)).To(Succeed())
		Expect(WriteFileAtomic(fileName, []byte("second"), 0o600)).To(Succeed())

		content, err := os.ReadFile(fileName)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(string(content)).To(Equal("second"))
	})

	It("leaves no temporary files behind", func() {
		fileName := filepath.Join(tempDir, "state.json")
		Expect(WriteFileAtomic(fileName, []byte("content"), 0o600)).To(Succeed())

		entries, err := os.ReadDir(tempDir)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Name()).To(Equal("state.json"))
	})

	It("fails when the directory does not exist", func() {
		fileName := filepath.Join(tempDir, "no", "such", "dir", "state.json")
		Expect(WriteFileAtomic(fileName, []byte("content"), 0o600)).ToNot(Succeed())
	})
})

var _ = Describe("Parent directory creation", func() {
	It("creates the missing parents", func() {
		tempDir := GinkgoT().TempDir()
		fileName := filepath.Join(tempDir, "a", "b", "state.json")

		Expect(EnsureParentDirectoryExist(fileName)).To(Succeed())

		result, err := FileExists(filepath.Join(tempDir, "a", "b"))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(result).To(BeTrue())
	})
})
