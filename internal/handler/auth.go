package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !h.bindJSON(w, r, &req) {
		return
	}

	// 用户不存在与密码错误返回同样的提示
	user, err := h.repository.GetUserByUsername(r.Context(), req.Username)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		h.errorResponse(w, r, "用户名不存在或密码错误")
		return
	case err != nil:
		h.internalServerError(w, r, err)
		return
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password))
	switch {
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		h.errorResponse(w, r, "用户名不存在或密码错误")
		return
	case err != nil:
		h.internalServerError(w, r, err)
		return
	}

	token, expiresAt, err := h.issueToken(user.ID, string(user.Role))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	h.setTokenCookie(w, token, expiresAt)

	h.successResponse(w, r, "登录成功", user)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setTokenCookie(w, "", time.Now().Add(-time.Hour))
	h.successResponse(w, r, "登出成功", nil)
}

const resetPasswordSent = "重置密码所需验证码已通过邮件发送"

func (h *Handler) RequireResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
	}
	if !h.bindJSON(w, r, &req) {
		return
	}

	user, err := h.repository.GetUserByUsername(r.Context(), req.Username)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// 不暴露用户名是否存在
		h.successResponse(w, r, resetPasswordSent, nil)
		return
	case err != nil:
		h.internalServerError(w, r, err)
		return
	}

	otp, err := h.issueOTP(r.Context(), resetPasswordOTPKey(user.Username))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	data := domain.ResetPasswordMailData{
		FullName:   user.FullName,
		OTP:        otp,
		Expiration: h.otpExpirationMinutes(),
	}
	if err := h.enqueueMail(r.Context(), domain.MailTypeResetPassword, user.Email, data); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, resetPasswordSent, nil)
}

func (h *Handler) ConfirmResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		OTP      string `json:"otp" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !h.bindJSON(w, r, &req) {
		return
	}

	ok, err := h.consumeOTP(r.Context(), resetPasswordOTPKey(req.Username), req.OTP)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if !ok {
		h.errorResponse(w, r, "验证码错误或已过期")
		return
	}

	user, err := h.repository.GetUserByUsername(r.Context(), req.Username)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		h.errorResponse(w, r, "用户不存在")
		return
	case err != nil:
		h.internalServerError(w, r, err)
		return
	}

	if user.PasswordHash, err = hashPassword(req.Password); err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if err := h.repository.UpdateUser(r.Context(), user); err != nil {
		h.userConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "重置密码成功", nil)
}
