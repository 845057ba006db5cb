package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/config"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/queue"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/repository"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/runner"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := repository.OpenDB(cfg)
	if err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}
	defer dbpool.Close()

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 连接 rabbitmq
	 **********************************************/
	// 通知邮件也由 worker 投递
	conn, ch, err := queue.Dial(cfg.RabbitMQ.DSN, cfg.RabbitMQ.EmailQueue, cfg.RabbitMQ.OptimizationQueue)
	if err != nil {
		logger.Error("无法连接到 rabbitmq", "error", err)
		return
	}
	defer conn.Close()
	defer ch.Close()

	// 优化任务是 CPU 密集型的，每个 worker 同时只处理一个
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error("无法设置预取数量", "error", err)
		return
	}

	msgs, err := ch.Consume(
		cfg.RabbitMQ.OptimizationQueue, // 队列
		"",                             // 消费者标识
		false,                          // 是否自动确认消息
		false,                          // 是否独占队列
		false,                          // 是否禁止消费者接受自己发送的消息
		false,                          // 是否不等待
		nil,                            // 额外参数
	)
	if err != nil {
		logger.Error("无法消费消息", "error", err)
		return
	}

	/**********************************************
	 * 暴露 prometheus 指标
	 **********************************************/
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{
		Addr:     fmt.Sprintf(":%s", cfg.Metrics.Port),
		Handler:  mux,
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	go func() {
		logger.Info("正在启动指标服务器...", "port", cfg.Metrics.Port)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("无法启动指标服务器", "error", err)
		}
	}()

	/**********************************************
	 * 处理优化任务
	 **********************************************/
	publisher := queue.NewPublisher(ch, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)
	r := runner.NewRunner(cfg, repo, publisher, recorder)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, stop := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Error("消息通道已关闭")
					return
				}

				var om domain.OptimizationMessage
				if err := json.Unmarshal(msg.Body, &om); err != nil {
					logger.Error("优化任务消息反序列化失败", "error", err)
					_ = msg.Nack(false, false)
					continue
				}

				// 正在执行的任务不随关闭信号取消，关闭时等待其结束
				if err := r.Execute(context.Background(), om.RunID); err != nil {
					logger.Error("优化任务处理失败", "runID", om.RunID, "redelivered", msg.Redelivered, "error", err)
					// 只重新入队一次
					_ = msg.Nack(false, !msg.Redelivered)
					continue
				}

				_ = msg.Ack(false)
			}
		}
	}()

	// 定期回收执行中途 worker 退出而停留在 running 的任务
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Duration(cfg.Optimizer.ReclaimInterval) * time.Second)
		defer ticker.Stop()
		for {
			if n, err := r.ReclaimStaleRuns(ctx); err != nil {
				logger.Error("回收中断的优化任务失败", "error", err)
			} else if n > 0 {
				logger.Info("已回收中断的优化任务", "count", n)
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	logger.Info("等待优化任务...（按 CTRL+C 退出）")
	<-sigChan

	logger.Info("正在关闭 optimization worker...")
	stop()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭指标服务器失败", "error", err)
	}
	logger.Info("optimization worker 已成功关闭")
}
