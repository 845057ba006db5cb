package handler

import (
	"context"

	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
)

// enqueueMail 将邮件投递到邮件队列，由 mail 服务发送
func (h *Handler) enqueueMail(ctx context.Context, mailType, to string, data any) error {
	return h.publisher.PublishJSON(ctx, h.config.RabbitMQ.EmailQueue, domain.MailMessage{
		Type: mailType,
		To:   to,
		Data: data,
	})
}

// otpExpirationMinutes 邮件中以分钟展示验证码有效期
func (h *Handler) otpExpirationMinutes() int {
	return h.config.OTP.Expiration / 60
}
