package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/config"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/repository"
)

// Publisher 将消息投递到指定队列，由 queue.Publisher 实现
type Publisher interface {
	PublishJSON(ctx context.Context, queue string, v any) error
}

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  *repository.Repository
	translator  ut.Translator
	publisher   Publisher
	redisClient *redis.Client
	gatherer    prometheus.Gatherer
	recorder    *metrics.Recorder

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, publisher Publisher, rdb *redis.Client, registry *prometheus.Registry) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		publisher:   publisher,
		redisClient: rdb,
		gatherer:    registry,
		recorder:    metrics.NewRecorder(registry),

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Route("/reset-password", func(r chi.Router) {
			r.Post("/require", h.RequireResetPassword)
			r.Post("/confirm", h.ConfirmResetPassword)
		})
	})

	adminOnly := h.requireRole(domain.RoleAdmin)
	writers := h.requireRole(domain.RoleAdmin, domain.RoleOperator)

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
			r.Route("/update-email", func(r chi.Router) {
				r.Post("/require", h.RequireUpdateEmail)
				r.Post("/confirm", h.ConfirmUpdateEmail)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.With(adminOnly).Post("/", h.CreateUser)
			r.Get("/", h.GetAllUserInfo)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUserInfo)
				r.With(h.preventOperateInitialAdmin).With(adminOnly).Patch("/", h.UpdateUser)
				r.With(h.preventOperateInitialAdmin).With(adminOnly).Delete("/", h.DeleteUser)
				r.With(adminOnly).Patch("/password", h.UpdateUserPassword)
			})
		})

		r.Get("/algorithms", h.GetAlgorithms)
		r.Post("/optimize", h.Optimize)

		r.Route("/clusters", func(r chi.Router) {
			r.With(writers).Post("/", h.CreateCluster)
			r.Get("/", h.GetAllClusters)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.cluster)
				r.Get("/", h.GetCluster)
				r.With(writers).Patch("/", h.UpdateCluster)
				r.With(writers).Delete("/", h.DeleteCluster)
				r.Route("/runs", func(r chi.Router) {
					r.With(writers).With(h.myInfo).With(h.preventInactiveUser).Post("/", h.CreateRun)
					r.Get("/", h.GetClusterRuns)
				})
			})
		})

		r.Get("/runs/{id}", h.GetRun)
	})
}
