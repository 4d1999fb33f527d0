// Package storage wraps the external stores (metadata databases, Redis and
// object stores) with tracing and maps driver errors onto the common
// error taxonomy.
package storage

import (
	"fmt"

	"github.com/maneesh/filesmanager/internal/common"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("filesmanager-storage")

// unavailable marks err as a downstream failure
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrStoreUnavailable, op, err)
}
