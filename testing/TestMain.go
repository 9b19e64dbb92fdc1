package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("PANADERIA_TEST_MODE", "1")
		if os.Getenv("BUSINESS_TIMEZONE") == "" {
			_ = os.Setenv("BUSINESS_TIMEZONE", "America/Santiago")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
