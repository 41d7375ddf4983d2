package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/wastebill/internal/config"
	obsmetrics "github.com/smallbiznis/wastebill/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyMpesaCallback = "mpesa:callback:%s"

	EndpointMpesaCallback = "mpesa_callback"
)

type CallbackLimiterParams struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	Bucket     *TokenBucket        `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// CallbackLimiter throttles provider callbacks per source address. It allows
// every request when Redis is not configured or unreachable.
type CallbackLimiter struct {
	bucket     *TokenBucket
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics
	rate       float64
	burst      int
}

func NewCallbackLimiter(p CallbackLimiterParams) *CallbackLimiter {
	return &CallbackLimiter{
		bucket:     p.Bucket,
		log:        p.Log.Named("ratelimit.callback"),
		obsMetrics: p.ObsMetrics,
		rate:       p.Cfg.Mpesa.CallbackRate,
		burst:      p.Cfg.Mpesa.CallbackBurst,
	}
}

func (l *CallbackLimiter) Enabled() bool {
	return l != nil && l.bucket != nil && l.rate > 0 && l.burst > 0
}

func (l *CallbackLimiter) Allow(ctx context.Context, source string) Result {
	if !l.Enabled() {
		return Result{Allowed: true}
	}

	key := fmt.Sprintf(keyMpesaCallback, strings.TrimSpace(source))
	res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
	if err != nil {
		l.log.Warn("callback rate limit unavailable, allowing request", zap.Error(err))
		l.obsMetrics.RecordRateLimitAllowed(ctx, EndpointMpesaCallback)
		return Result{Allowed: true, Limit: l.burst}
	}
	if !res.Allowed {
		l.obsMetrics.RecordRateLimitDenied(ctx, EndpointMpesaCallback, "bucket_empty")
		return res
	}
	l.obsMetrics.RecordRateLimitAllowed(ctx, EndpointMpesaCallback)
	return res
}
