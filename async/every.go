// Package async provides helpers for scheduling periodic background work.
package async

import (
	"context"
	"reflect"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
)

// RunEvery invokes f on the given period from a dedicated goroutine until
// the context ends.
func RunEvery(ctx context.Context, period time.Duration, f func()) {
	funcName := runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.WithField("function", funcName).Trace("Running periodic task")
				f()
			case <-ctx.Done():
				log.WithField("function", funcName).Debug("Context done, stopping periodic task")
				return
			}
		}
	}()
}
