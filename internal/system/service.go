// Package system provides the lifecycle contract every long-running
// orchestrator component implements, and a Manager that starts them in
// registration order and stops them in reverse order.
package system

import "context"

// Service is a lifecycle-managed component: the HTTP API, the round
// scheduler, and (in tests) fakes all implement this so Manager can drive
// them uniformly.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
