package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// sweepBatchSize caps how many overdue rides a single sweep handles.
const sweepBatchSize = 100

// ExpirySweeper periodically expires pending rides whose acceptance deadline
// has passed. It is a backstop behind the lazy expiry done by accept and
// confirm, so riders whose rides attract no traffic still hear back.
type ExpirySweeper struct {
	rideRepo   repository.RideRepository
	dispatcher Dispatcher
	interval   time.Duration
	log        *zap.Logger

	stop chan struct{}
	done chan struct{}
}

// NewExpirySweeper creates a new ExpirySweeper.
func NewExpirySweeper(rideRepo repository.RideRepository, dispatcher Dispatcher, interval time.Duration, log *zap.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		rideRepo:   rideRepo,
		dispatcher: dispatcher,
		interval:   interval,
		log:        log,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the sweep loop in a background goroutine.
func (s *ExpirySweeper) Start() {
	go s.run()
}

// Stop terminates the sweep loop and waits for the current pass to finish.
func (s *ExpirySweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *ExpirySweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep(context.Background())
		}
	}
}

// Sweep expires every pending ride whose deadline has passed. Each ride is
// expired with a conditional update, so a concurrent confirm that wins the
// race keeps its ride and the sweeper moves on.
func (s *ExpirySweeper) Sweep(ctx context.Context) {
	now := time.Now()

	rides, err := s.rideRepo.FindExpiredPending(ctx, now, sweepBatchSize)
	if err != nil {
		s.log.Error("expiry sweep query failed", zap.Error(err))
		return
	}

	expired := 0
	for _, ride := range rides {
		_, err := s.rideRepo.UpdateIfStatus(ctx, ride.ID, domain.RideStatusPending, func(r *domain.Ride) error {
			r.Status = domain.RideStatusExpired
			return nil
		})
		if err != nil {
			if errors.Is(err, repository.ErrPreconditionFailed) || errors.Is(err, repository.ErrNotFound) {
				continue
			}
			s.log.Error("failed to expire ride", zap.String("ride_id", ride.ID), zap.Error(err))
			continue
		}
		expired++

		if err := s.dispatcher.Publish(ctx, RiderChannel(ride.RiderID), EventRideExpired, ExpiryPayload{
			RideID:  ride.ID,
			Message: "no driver was confirmed within the acceptance window",
		}); err != nil {
			s.log.Warn("failed to notify rider of expiry",
				zap.String("ride_id", ride.ID), zap.Error(err))
		}
	}

	if expired > 0 {
		s.log.Info("expired stale pending rides", zap.Int("count", expired))
	}
}
