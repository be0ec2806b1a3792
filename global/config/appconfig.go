package config

import "time"

// AppConfig 应用全量配置（yaml -> map -> mapstructure）
type AppConfig struct {
	NodeId int64  `mapstructure:"node_id"` // 雪花节点号
	Addr   string `mapstructure:"addr"`    // http 监听地址，如 :8080

	Mongo  MongoConfig  `mapstructure:"mongo"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Nats   NatsConfig   `mapstructure:"nats"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Jwt    JwtConfig    `mapstructure:"jwt"`
	Fanout FanoutConfig `mapstructure:"fanout"`
	Conn   ConnConfig   `mapstructure:"conn"`
}

type MongoConfig struct {
	Uri         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize int    `mapstructure:"max_pool_size"`
	MaxRetry    int    `mapstructure:"max_retry"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type NatsConfig struct {
	Enable  bool     `mapstructure:"enable"`
	Servers []string `mapstructure:"servers"`
	Name    string   `mapstructure:"name"`
}

type KafkaConfig struct {
	Enable  bool     `mapstructure:"enable"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupId string   `mapstructure:"group_id"`
}

type JwtConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type FanoutConfig struct {
	Workers int `mapstructure:"workers"`
	Queue   int `mapstructure:"queue"`
}

type ConnConfig struct {
	AuthTTL    time.Duration `mapstructure:"auth_ttl"`    // 已授权连接 TTL
	SweepEvery time.Duration `mapstructure:"sweep_every"` // 过期连接清理周期
	MaxPerUser int           `mapstructure:"max_per_user"`
	SendQueue  int           `mapstructure:"send_queue"` // 每连接发送队列长度
}

// Normalize 填默认值
func (c *AppConfig) Normalize() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.NodeId <= 0 {
		c.NodeId = 1
	}
	if c.Fanout.Workers <= 0 {
		c.Fanout.Workers = 4
	}
	if c.Fanout.Queue <= 0 {
		c.Fanout.Queue = 1024
	}
	if c.Conn.AuthTTL <= 0 {
		c.Conn.AuthTTL = 2 * time.Hour
	}
	if c.Conn.SweepEvery <= 0 {
		c.Conn.SweepEvery = 30 * time.Second
	}
	if c.Conn.SendQueue <= 0 {
		c.Conn.SendQueue = 256
	}
	if c.Jwt.TTL <= 0 {
		c.Jwt.TTL = 2 * time.Hour
	}
}
