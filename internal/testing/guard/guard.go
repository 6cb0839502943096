// Package guard is imported for side effects by tests that call a binary's
// main, so startup returns before dialing Postgres or Redis.
package guard

import (
	"os"

	"github.com/odyssey-erp/quotedesk/internal/app"
)

func init() {
	if _, set := os.LookupEnv(app.TestModeEnv); !set {
		_ = os.Setenv(app.TestModeEnv, "1")
	}
}
