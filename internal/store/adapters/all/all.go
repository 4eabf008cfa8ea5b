// Package all importa todos los adapters para auto-registro.
// Importar este paquete en main.go para habilitar todos los drivers.
//
//	import _ "github.com/dropDatabas3/tenantdb/internal/store/adapters/all"
package all

import (
	_ "github.com/dropDatabas3/tenantdb/internal/store/adapters/mysql"
	_ "github.com/dropDatabas3/tenantdb/internal/store/adapters/pg"
	_ "github.com/dropDatabas3/tenantdb/internal/store/adapters/sqlite"
)
