package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/utils"
)

func resetPasswordOTPKey(username string) string {
	return fmt.Sprintf("otp_%s_reset_password", username)
}

func changeEmailOTPKey(username, newEmail string) string {
	return fmt.Sprintf("otp_%s_change_email_to_%s", username, newEmail)
}

func (h *Handler) redisContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(h.config.Redis.OperationExpiration)*time.Second)
}

// issueOTP 生成验证码并存入 redis，同一个 key 再次申请会覆盖旧的验证码
func (h *Handler) issueOTP(ctx context.Context, key string) (string, error) {
	otp := utils.GenerateRandomOTP()

	ctx, cancel := h.redisContext(ctx)
	defer cancel()

	if err := h.redisClient.Set(ctx, key, otp, time.Duration(h.config.OTP.Expiration)*time.Second).Err(); err != nil {
		return "", err
	}
	return otp, nil
}

// consumeOTP 取出并删除验证码，无论是否匹配，验证码都只能使用一次
func (h *Handler) consumeOTP(ctx context.Context, key, otp string) (bool, error) {
	ctx, cancel := h.redisContext(ctx)
	defer cancel()

	stored, err := h.redisClient.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(otp)) == 1, nil
}
