// Package testmode marks the process as a test run when imported, so the
// binaries skip connecting to Postgres and Redis.
package testmode

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("GOL_TEST_MODE") == "" {
			_ = os.Setenv("GOL_TEST_MODE", "1")
		}
	})
}
