// Package guard forces test mode for any test binary that imports it, so
// binaries under test never dial Postgres or Redis.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SWEETLINE_TEST_MODE") == "" {
			_ = os.Setenv("SWEETLINE_TEST_MODE", "1")
		}
	})
}
