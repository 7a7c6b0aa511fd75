//go:build !cgo

package mysql

import (
	"context"
	"fmt"
)

// openEmbedded returns an error in non-CGO builds. The embedded Dolt engine
// needs CGO; server mode works either way.
func openEmbedded(_ context.Context, _ Config) (*Store, error) {
	return nil, fmt.Errorf("embedded database mode requires a CGO-enabled build; connect to a MySQL server instead (--db-addr host:port)")
}
