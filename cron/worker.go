package cron

import (
	"context"
	"time"

	"bookline/config"
	"bookline/services/correlation"
	"bookline/services/session"
	"bookline/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeHousekeepingSweep = "housekeeping:sweep"

// defaultSweepMaxAge bounds how long an untouched conversation survives
// before the sweeper reclaims it, when SWEEP_MAX_AGE_MIN is unset.
const defaultSweepMaxAge = 2 * time.Hour

// sweepMaxAge reads the configured session age ceiling.
func sweepMaxAge() time.Duration {
	if min := config.AppConfig.SweepMaxAgeMin; min > 0 {
		return time.Duration(min) * time.Minute
	}
	return defaultSweepMaxAge
}

func redisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// InitHousekeeping starts the background worker and the hourly schedule that
// sweeps stale sessions and expired correlation entries.
func InitHousekeeping(sessions session.Store, correlations *correlation.Store) {
	logger := utils.GetLogger()

	srv := asynq.NewServer(redisOpts(), asynq.Config{
		Concurrency: 2,
		Queues: map[string]int{
			"default": 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeHousekeepingSweep, func(ctx context.Context, t *asynq.Task) error {
		now := time.Now()
		swept := sessions.Sweep(now, sweepMaxAge())
		dropped := correlations.Sweep(now)
		logger.Info("housekeeping sweep done",
			zap.Int("sessionsSwept", swept),
			zap.Int("correlationsDropped", dropped))
		return nil
	})

	go func() {
		if err := srv.Run(mux); err != nil {
			logger.Error("housekeeping worker stopped", zap.Error(err))
		}
	}()

	scheduler := asynq.NewScheduler(redisOpts(), &asynq.SchedulerOpts{Location: time.Local})
	if _, err := scheduler.Register("@every 1h", asynq.NewTask(TypeHousekeepingSweep, nil)); err != nil {
		logger.Error("failed to register housekeeping schedule", zap.Error(err))
		return
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Error("housekeeping scheduler stopped", zap.Error(err))
		}
	}()
}
