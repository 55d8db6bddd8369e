// Package all wires every built-in storage backend into the storage
// registry. Import it for side effects:
//
//	import _ "ffietl/internal/storage/all"
//
// after which storage.Open accepts the kinds postgres, sqlite, mssql and
// mysql.
package all

import (
	_ "ffietl/internal/storage/postgres"
	_ "ffietl/internal/storage/sqlstore"
)
