package database

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Checker is a dependency pinged by the readiness endpoint.
type Checker interface {
	Name() string
	Ping(ctx context.Context) error
}

// CheckAll pings every checker with its own timeout and reports each failure.
func CheckAll(ctx context.Context, timeout time.Duration, checkers ...Checker) (map[string]string, error) {
	status := make(map[string]string, len(checkers))
	var errs []error
	for _, c := range checkers {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err := c.Ping(pctx)
		cancel()
		if err != nil {
			status[c.Name()] = "down"
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}
		status[c.Name()] = "up"
	}
	return status, errors.Join(errs...)
}
