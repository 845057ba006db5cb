package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/task-placer/backend/internal/config"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/domain"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/queue"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/repository"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/seed"
	"github.com/sysu-ecnc-dev/task-placer/backend/internal/utils"
)

func main() {
	var op int
	var n int
	var clustersFile string
	var enqueue bool

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机用户, 2: 插入随机集群, 3: 插入随机优化任务, 4: 插入预置集群)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.StringVar(&clustersFile, "clusters-file", seed.DefaultClustersFile, "预置集群的 YAML 文件")
	flag.BoolVar(&enqueue, "enqueue", false, "插入随机优化任务后是否投递到优化队列")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := repository.OpenDB(cfg)
	if err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}
	defer dbpool.Close()

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的用户数量")
		} else {
			cnt := n
			for i := 0; i < n; i++ {
				user, err := utils.GenerateRandomUser(cfg.Seed.User.Password, cfg.Email.UserDomain)
				if err != nil {
					slog.Error("无法生成随机用户", slog.String("error", err.Error()))
					continue
				}

				if err := repo.CreateUser(context.Background(), user); err != nil {
					slog.Error("无法插入用户", slog.String("error", err.Error()))
					continue
				}

				cnt--
			}

			slog.Info("插入用户成功", slog.Int("count", n-cnt))
		}
	case 2:
		if n <= 0 {
			slog.Error("请输入合法的集群数量")
		} else {
			cnt := n
			for i := 0; i < n; i++ {
				cluster := utils.GenerateRandomCluster()
				if err := repo.CreateCluster(context.Background(), cluster); err != nil {
					slog.Error("无法插入集群", slog.String("error", err.Error()))
					continue
				}

				cnt--
			}

			slog.Info("插入集群成功", slog.Int("count", n-cnt))
		}
	case 3:
		if n <= 0 {
			slog.Error("请输入合法的优化任务数量")
			return
		}

		clusters, err := repo.GetAllClusters(context.Background())
		if err != nil {
			slog.Error("无法获取所有集群", slog.String("error", err.Error()))
			return
		}
		users, err := repo.GetAllUsers(context.Background())
		if err != nil {
			slog.Error("无法获取所有用户", slog.String("error", err.Error()))
			return
		}
		if len(clusters) == 0 || len(users) == 0 {
			slog.Error("请先插入集群和用户")
			return
		}

		var publisher *queue.Publisher
		if enqueue {
			conn, ch, err := queue.Dial(cfg.RabbitMQ.DSN, cfg.RabbitMQ.OptimizationQueue)
			if err != nil {
				slog.Error("无法连接到 RabbitMQ", "error", err)
				return
			}
			defer conn.Close()
			defer ch.Close()

			publisher = queue.NewPublisher(ch, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)
		}

		cnt := 0
		for i := 0; i < n; i++ {
			// 随机选一个集群和创建者
			cluster := clusters[rand.Intn(len(clusters))]
			user := users[rand.Intn(len(users))]

			run := utils.GenerateRandomRun(cluster.ID, user.ID)
			if err := repo.CreateRun(context.Background(), run); err != nil {
				slog.Error("无法插入优化任务", slog.String("error", err.Error()))
				continue
			}

			if publisher != nil {
				if err := publisher.PublishJSON(context.Background(), cfg.RabbitMQ.OptimizationQueue, domain.OptimizationMessage{RunID: run.ID}); err != nil {
					slog.Error("无法投递优化任务", slog.Int64("runID", run.ID), slog.String("error", err.Error()))
					continue
				}
			}

			cnt++
		}

		slog.Info("插入优化任务成功", slog.Int("count", cnt))
	case 4:
		seed.SeedClusters(context.Background(), repo, clustersFile)
	default:
		slog.Error("指定的操作非法")
	}
}
