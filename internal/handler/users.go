package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/utils"
)

var userConstraintMessages = map[string]string{
	"users_username_key": "用户名已存在",
	"users_email_key":    "邮箱已存在",
}

// userConstraintError 将用户表的唯一约束冲突以及版本冲突转换为提示信息
func (h *Handler) userConstraintError(w http.ResponseWriter, r *http.Request, err error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if msg, ok := userConstraintMessages[pgErr.ConstraintName]; ok {
			h.errorResponse(w, r, msg)
			return
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		h.errorResponse(w, r, "用户信息已被修改，请重试")
		return
	}
	h.internalServerError(w, r, err)
}

func (h *Handler) GetAllUserInfo(w http.ResponseWriter, r *http.Request) {
	users, err := h.repository.GetAllUsers(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取用户列表成功", users)
}

// CreateUser 生成随机初始密码，并通过邮件告知新用户
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		FullName string `json:"fullName" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Role     string `json:"role" validate:"required,oneof=admin operator viewer"`
	}
	if !h.bindJSON(w, r, &req) {
		return
	}

	password := utils.GenerateRandomPassword(h.config.NewUser.PasswordLength)
	hashed, err := hashPassword(password)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	user := &domain.User{
		Username:     req.Username,
		PasswordHash: hashed,
		FullName:     req.FullName,
		Email:        req.Email,
		Role:         domain.Role(req.Role),
	}
	if err := h.repository.CreateUser(r.Context(), user); err != nil {
		h.userConstraintError(w, r, err)
		return
	}

	data := domain.CreateUserMailData{
		FullName: user.FullName,
		Username: user.Username,
		Password: password,
	}
	if err := h.enqueueMail(r.Context(), domain.MailTypeCreateUser, user.Email, data); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "用户创建成功", user)
}

func (h *Handler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "获取用户信息成功", r.Context().Value(UserInfoCtx).(*domain.User))
}

// UpdateUser 只修改请求中出现的字段
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName *string `json:"fullName"`
		Email    *string `json:"email" validate:"omitempty,email"`
		Role     *string `json:"role" validate:"omitempty,oneof=admin operator viewer"`
		IsActive *bool   `json:"isActive"`
	}
	if !h.bindJSON(w, r, &req) {
		return
	}

	user := r.Context().Value(UserInfoCtx).(*domain.User)
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Role != nil {
		user.Role = domain.Role(*req.Role)
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := h.repository.UpdateUser(r.Context(), user); err != nil {
		h.userConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "更新用户信息成功", user)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)
	if err := h.repository.DeleteUser(r.Context(), user.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除用户成功", nil)
}

func (h *Handler) UpdateUserPassword(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	var req struct {
		Password string `json:"password" validate:"required"`
	}
	if !h.bindJSON(w, r, &req) {
		return
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	user.PasswordHash = hashed
	if err := h.repository.UpdateUser(r.Context(), user); err != nil {
		h.userConstraintError(w, r, err)
		return
	}

	h.successResponse(w, r, "修改密码成功", nil)
}
