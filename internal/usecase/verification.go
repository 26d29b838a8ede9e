package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/face-match/internal/facematch"
	"github.com/example/face-match/internal/imaging"
	"github.com/example/face-match/internal/logging"
	"github.com/example/face-match/internal/verifier"
)

// MatchUseCase verifies every comparison image of a request against its target.
type MatchUseCase struct {
	verifier       verifier.Verifier
	opts           verifier.Options
	cache          Cache
	cacheTTL       time.Duration
	maxPixels      int64
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// Option customizes a MatchUseCase.
type Option func(*MatchUseCase)

// WithCache enables the verdict cache. A nil cache leaves it disabled.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(uc *MatchUseCase) {
		uc.cache = cache
		uc.cacheTTL = ttl
	}
}

// WithMaxImagePixels caps width*height of every decoded image.
func WithMaxImagePixels(maxPixels int64) Option {
	return func(uc *MatchUseCase) {
		uc.maxPixels = maxPixels
	}
}

// NewMatchUseCase constructs a new use case instance.
func NewMatchUseCase(v verifier.Verifier, opts verifier.Options, logger *zap.Logger, options ...Option) *MatchUseCase {
	uc := &MatchUseCase{
		verifier:       v,
		opts:           opts,
		maxPixels:      imaging.DefaultMaxPixels,
		logger:         logger.Named("match_usecase"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
	for _, opt := range options {
		opt(uc)
	}
	return uc
}

// Match runs the comparisons sequentially and returns one outcome per
// comparison, in request order. It never fails: decode and verifier errors
// become OutcomeFailed entries.
func (uc *MatchUseCase) Match(ctx context.Context, requestID string, req *facematch.Request) []facematch.Outcome {
	opLogger := logging.WithOperation(uc.logger, "usecase.match", requestID)
	opLogger.Info("processing comparison images",
		zap.String("target", req.Target.Filename),
		zap.Int("comparisons", len(req.Comparisons)),
	)

	target, targetErr := imaging.Decode(req.Target.Data, uc.maxPixels)
	if targetErr != nil {
		targetErr = logging.NewOperationError("usecase.decode_target", requestID, targetErr)
		opLogger.Warn("target image could not be decoded", zap.Error(targetErr))
	}
	targetHash := digest(req.Target.Data)

	outcomes := make([]facematch.Outcome, 0, len(req.Comparisons))
	for _, comparison := range req.Comparisons {
		var outcome facematch.Outcome
		if targetErr != nil {
			outcome = facematch.Failed(comparison.Filename, targetErr)
		} else {
			outcome = uc.compare(ctx, requestID, target, targetHash, comparison)
		}

		fields := []zap.Field{
			zap.String("filename", comparison.Filename),
			zap.Stringer("outcome", outcome.Kind),
		}
		if outcome.Err != nil {
			fields = append(fields, zap.Error(outcome.Err))
		}
		opLogger.Info("comparison processed", fields...)
		outcomes = append(outcomes, outcome)
	}

	opLogger.Info("comparisons finished", zap.Int("failures", facematch.Failures(outcomes)))
	return outcomes
}

func (uc *MatchUseCase) compare(ctx context.Context, requestID string, target *imaging.PixelArray, targetHash string, comparison facematch.Upload) facematch.Outcome {
	cacheKey := verdictKey(uc.opts, targetHash, comparison.Data)
	if verified, ok := uc.cachedVerdict(ctx, requestID, cacheKey); ok {
		if verified {
			return facematch.Verified(comparison.Filename, 0)
		}
		return facematch.Rejected(comparison.Filename, 0)
	}

	img, err := imaging.Decode(comparison.Data, uc.maxPixels)
	if err != nil {
		return facematch.Failed(comparison.Filename, logging.NewOperationError("usecase.decode_comparison", requestID, err))
	}

	result, err := uc.verifier.Verify(ctx, target, img, uc.opts)
	if err != nil {
		return facematch.Failed(comparison.Filename, logging.NewOperationError("usecase.verify", requestID, err))
	}

	uc.storeVerdict(ctx, requestID, cacheKey, result.Verified)
	if result.Verified {
		return facematch.Verified(comparison.Filename, result.Distance)
	}
	return facematch.Rejected(comparison.Filename, result.Distance)
}

func (uc *MatchUseCase) cachedVerdict(ctx context.Context, requestID, key string) (bool, bool) {
	if uc.cache == nil {
		return false, false
	}
	value, err := uc.withRedisGet(ctx, requestID, "cache.get.verdict", key)
	if err != nil {
		if !IsMiss(err) {
			logging.WithOperation(uc.logger, "usecase.cached_verdict", requestID).Warn("failed to read cache", zap.Error(err))
		}
		return false, false
	}
	return decodeVerdict(value)
}

func (uc *MatchUseCase) storeVerdict(ctx context.Context, requestID, key string, verified bool) {
	if uc.cache == nil {
		return
	}
	if err := uc.withRedisRetry(ctx, requestID, "cache.set.verdict", func() error {
		return uc.cache.Set(ctx, key, encodeVerdict(verified), uc.cacheTTL)
	}); err != nil {
		logging.WithOperation(uc.logger, "usecase.store_verdict", requestID).Warn("failed to cache verdict", zap.Error(err))
	}
}

func (uc *MatchUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		err := fn()
		return logging.NewOperationError(operation, requestID, err)
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *MatchUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
