// Package retry 为上游调用提供指数退避重试。
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/MeriemTerki/Project2CS/types"
)

// Policy 重试策略
type Policy struct {
	MaxRetries   int           // 最大重试次数（0 表示不重试）
	InitialDelay time.Duration // 初始延迟
	MaxDelay     time.Duration // 最大延迟
	Multiplier   float64       // 指数退避倍数
	Jitter       bool          // ±25% 随机抖动

	// Retryable 判断错误是否可重试，nil 时使用 types.IsRetryable
	Retryable func(err error) bool
	// OnRetry 每次重试前回调
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy 返回语音场景下的默认策略：一次快速重试，避免拉长轮次延迟
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   1,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retryer 按策略执行函数
type Retryer struct {
	policy Policy
	logger *zap.Logger
}

// New 创建重试器，非法参数回退到默认值
func New(policy Policy, logger *zap.Logger) *Retryer {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultPolicy()
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = def.InitialDelay
	}
	if policy.MaxDelay < policy.InitialDelay {
		policy.MaxDelay = max(def.MaxDelay, policy.InitialDelay)
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = def.Multiplier
	}
	if policy.Retryable == nil {
		policy.Retryable = types.IsRetryable
	}
	return &Retryer{policy: policy, logger: logger}
}

// Policy 返回生效的策略
func (r *Retryer) Policy() Policy { return r.policy }

// Do 执行 fn，失败且可重试时按退避等待后重试。
// 返回最后一次的原始错误，不额外包装，调用方可以继续按错误码判断。
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.delay(attempt)
			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return lastErr
			case <-timer.C:
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 0 {
				r.logger.Info("retry succeeded", zap.Int("attempt", attempt))
			}
			return nil
		}
		if ctx.Err() != nil || !r.policy.Retryable(lastErr) {
			return lastErr
		}
	}

	if r.policy.MaxRetries > 0 {
		r.logger.Warn("retries exhausted",
			zap.Int("attempts", r.policy.MaxRetries+1),
			zap.Error(lastErr),
		)
	}
	return lastErr
}

// delay 计算第 attempt 次重试前的等待时间
func (r *Retryer) delay(attempt int) time.Duration {
	d := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if d > float64(r.policy.MaxDelay) {
		d = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter {
		jitter := d * 0.25
		d += (rand.Float64()*2 - 1) * jitter
	}
	if d < float64(r.policy.InitialDelay) {
		d = float64(r.policy.InitialDelay)
	}
	return time.Duration(d)
}
