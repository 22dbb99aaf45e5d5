// Package all registers every workspace backend. Import it for side effects.
package all

import (
	_ "cameo/internal/storage/memory"
	_ "cameo/internal/storage/mssql"
	_ "cameo/internal/storage/mysql"
	_ "cameo/internal/storage/postgres"
	_ "cameo/internal/storage/sqlite"
)
