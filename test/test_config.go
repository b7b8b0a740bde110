// Package test holds helpers shared by the tests of the module.
package test

import (
	"path/filepath"
	"runtime"
)

// RootPath returns the absolute path of the module root, whatever package the running test belongs to.
func RootPath() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot locate the module root")
	}

	return filepath.Join(filepath.Dir(filename), "..")
}

// Path joins elems to the module root. Relative paths given to tests resolve against the package directory, so
// fixtures shared between packages go through Path.
func Path(elems ...string) string {
	return filepath.Join(append([]string{RootPath()}, elems...)...)
}
