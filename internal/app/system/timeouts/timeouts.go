// internal/app/system/timeouts/timeouts.go
package timeouts

import "time"

// Store is the default deadline for a single store call.
func Store() time.Duration { return 10 * time.Second }

// Ping is the deadline for health-check pings.
func Ping() time.Duration { return 3 * time.Second }

// Txn is the deadline for a full validate-cascade-persist unit of work.
func Txn() time.Duration { return 15 * time.Second }
