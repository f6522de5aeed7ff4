package params

import (
	"testing"
)

// SetupTestConfigCleanup preserves the active config, allowing tests to
// modify it without any risk of affecting other tests.
func SetupTestConfigCleanup(t testing.TB) {
	prev := CoordinatorConfig().Copy()
	t.Cleanup(func() {
		OverrideCoordinatorConfig(prev)
	})
}
