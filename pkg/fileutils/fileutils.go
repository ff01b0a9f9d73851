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

// Package fileutils contains the utility functions about
// file management
package fileutils

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileExists check if a file exists, and return an error otherwise
func FileExists(fileName string) (bool, error) {
	if _, err := os.Stat(fileName); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReadFile reads the source file and returns its content
func ReadFile(fileName string) ([]byte, error) {
	exists, err := FileExists(fileName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	return os.ReadFile(fileName) // #nosec
}

// WriteFileAtomic replaces the contents of fileName with contents,
// passing through a sibling temporary file renamed over the target.
// The rename is atomic on POSIX filesystems, so readers observe
// either the previous content or the new one, never a partial write
func WriteFileAtomic(fileName string, contents []byte, perm os.FileMode) error {
	dir := filepath.Dir(fileName)
	tmp, err := os.CreateTemp(dir, filepath.Base(fileName)+".*.tmp")
	if err != nil {
		return fmt.Errorf("while creating temporary file in %q: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// best effort removal, the file is gone after a successful rename
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(contents); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("while writing temporary file %q: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("while syncing temporary file %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("while closing temporary file %q: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("while setting permissions on %q: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, fileName); err != nil {
		return fmt.Errorf("while renaming %q to %q: %w", tmpName, fileName, err)
	}
	return nil
}

// EnsureParentDirectoryExist check if the directory containing a certain file
// exist or not, and if is not existent will create the directory using
// 0700 as permissions bits
func EnsureParentDirectoryExist(fileName string) error {
	destinationDir := filepath.Dir(fileName)
	exists, err := FileExists(destinationDir)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return os.MkdirAll(destinationDir, 0o700)
}
