package safe

import (
	"estategate/logger"
)

// Go starts a goroutine that recovers from panic, so one connection's
// failure never crashes the gateway process.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
