// Package sensor defines the sample source boundary and a simulated
// trainer source for demos and tests. Real adapters (BLE, ANT+) live
// outside the core; the recorder only sees the Source interface.
package sensor

import (
	"context"

	"trainlog/internal/buffer"
)

// Source delivers sensor samples best-effort. Delivery gaps are
// expected and tolerated downstream.
type Source interface {
	// Run emits samples to the callback until the context is
	// cancelled or the source is exhausted.
	Run(ctx context.Context, emit func(buffer.Sample)) error
}
