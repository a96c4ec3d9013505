// Package all enables every built-in ledger backend. Import it for side
// effects only:
//
//	import _ "csvingest/internal/ledger/all"
package all

import (
	_ "csvingest/internal/ledger/postgres"
	_ "csvingest/internal/ledger/sqlite"
)
