package server

import (
	"context"
	"time"
)

// Run ticks s every interval until ctx is done, then stops it.
func Run(ctx context.Context, s *Server, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.Stop()
		case <-ticker.C:
			s.PollOnce(ctx)
		}
	}
}
