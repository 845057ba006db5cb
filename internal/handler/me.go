package handler

import (
	"net/http"

	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "获取个人信息成功", r.Context().Value(MyInfoCtx).(*domain.User))
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	me := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required"`
	}
	if !h.bindJSON(w, r, &req) {
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(me.PasswordHash), []byte(req.OldPassword)) != nil {
		h.errorResponse(w, r, "旧密码错误")
		return
	}

	hashed, err := hashPassword(req.NewPassword)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	me.PasswordHash = hashed
	if err := h.repository.UpdateUser(r.Context(), me); err != nil {
		h.userConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新密码成功", nil)
}

func (h *Handler) RequireUpdateEmail(w http.ResponseWriter, r *http.Request) {
	me := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		NewEmail string `json:"newEmail" validate:"required,email"`
	}
	if !h.bindJSON(w, r, &req) {
		return
	}

	taken, err := h.repository.CheckEmailIfExists(r.Context(), req.NewEmail)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if taken {
		h.errorResponse(w, r, "邮箱已被占用")
		return
	}

	otp, err := h.issueOTP(r.Context(), changeEmailOTPKey(me.Username, req.NewEmail))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 验证码发往新邮箱，以确认邮箱归属
	data := domain.ChangeEmailMailData{
		FullName:   me.FullName,
		OTP:        otp,
		Expiration: h.otpExpirationMinutes(),
	}
	if err := h.enqueueMail(r.Context(), domain.MailTypeChangeEmail, req.NewEmail, data); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "更改邮箱所需验证码已通过邮件发送", nil)
}

func (h *Handler) ConfirmUpdateEmail(w http.ResponseWriter, r *http.Request) {
	me := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		OTP      string `json:"otp" validate:"required"`
		NewEmail string `json:"newEmail" validate:"required,email"`
	}
	if !h.bindJSON(w, r, &req) {
		return
	}

	ok, err := h.consumeOTP(r.Context(), changeEmailOTPKey(me.Username, req.NewEmail), req.OTP)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if !ok {
		h.errorResponse(w, r, "验证码错误或已过期")
		return
	}

	// 验证码发出后邮箱仍可能被他人占用，由唯一约束兜底
	me.Email = req.NewEmail
	if err := h.repository.UpdateUser(r.Context(), me); err != nil {
		h.userConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "更改邮箱成功", nil)
}
