package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"SocialSync/global/config"
	"SocialSync/logger"
	"SocialSync/module/interaction/api"
	"SocialSync/module/interaction/store"
	"SocialSync/service/dispatcher/kafka"
	"SocialSync/service/eventx"
	"SocialSync/service/natsx"
	"SocialSync/service/presence"
	"SocialSync/service/push"
	"SocialSync/tools/ids"
	"SocialSync/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	confPath := flag.String("conf", "config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.Load(*confPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.Normalize()
	ids.SetNodeID(cfg.NodeId)
	nodeName := fmt.Sprintf("node-%d", cfg.NodeId)

	ctx := context.Background()

	// 1) 权威存储
	st, err := store.NewMongoStore(ctx, &store.Config{
		Uri:         cfg.Mongo.Uri,
		Database:    cfg.Mongo.Database,
		MaxPoolSize: cfg.Mongo.MaxPoolSize,
		MaxRetry:    cfg.Mongo.MaxRetry,
	})
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}

	// 2) 进程内事件总线（发布先于成功返回，见 store.Publishing）
	bus := eventx.NewMemoryBus()
	pub := store.NewPublishing(st, bus)

	// 3) presence 注册表 + Redis 镜像
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}
	reg := presence.NewRegistry(bus).
		WithMirror(presence.NewMirror(rdb, nodeName, cfg.Conn.AuthTTL))

	// 4) 连接管理 + 扇出 + 派发
	mgr := push.NewConnManager(push.ManagerConf{
		AuthTTL:     cfg.Conn.AuthTTL,
		SweepEvery:  cfg.Conn.SweepEvery,
		MaxPerUser:  cfg.Conn.MaxPerUser,
		EvictOldest: true,
		SendQueue:   cfg.Conn.SendQueue,
	}, nodeName)
	fanout := push.NewFanout(mgr, cfg.Fanout.Workers, cfg.Fanout.Queue)
	disp := push.NewDispatcher(pub, reg, fanout)
	disp.Start(bus)

	// 5) 跨节点桥接（二选一即可，都关掉就是单节点）
	if cfg.Nats.Enable {
		mgrN, err := natsx.NewManager(natsx.Config{
			Servers: cfg.Nats.Servers,
			Name:    cfg.Nats.Name,
		}, natsx.IdemMiddleware(natsx.NewRedisIdem(rdb, "", 10*time.Minute), 10*time.Minute))
		if err != nil {
			log.Fatalf("nats: %v", err)
		}
		if _, err := natsx.NewBridge(nodeName, mgrN, bus, "social-sync"); err != nil {
			log.Fatalf("nats bridge: %v", err)
		}
		logger.Infof("nats bridge up, servers=%v", cfg.Nats.Servers)
	}
	if cfg.Kafka.Enable {
		if err := kafka.InitKafkaClient(kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupId,
		}); err != nil {
			log.Fatalf("kafka: %v", err)
		}
		if err := kafka.InitSyncProducerFromClient(); err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		kafka.NewBridge(nodeName, bus)
		go func() {
			if err := kafka.StartConsumerGroup(ctx, []string{cfg.Kafka.Topic}); err != nil {
				logger.Errorf("kafka consumer group exit: %v", err)
			}
		}()
		logger.Infof("kafka bridge up, brokers=%v topic=%s", cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}

	// 6) HTTP + WebSocket
	jwtOpts := security.Options{Secret: []byte(cfg.Jwt.Secret), Alg: "HS256", TTL: cfg.Jwt.TTL}
	ws := push.NewServer(mgr, reg, jwtOpts)

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", ws.HandleWS)
	api.RegisterRoutes(r, api.NewHandler(pub), jwtOpts)

	logger.Infof("[HTTP] listening on %s", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}
