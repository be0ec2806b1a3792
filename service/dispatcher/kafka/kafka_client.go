package kafka

import (
	"time"

	"github.com/Shopify/sarama"
)

// Config Kafka 事件流配置
type Config struct {
	Brokers         []string
	Topic           string // 领域事件统一 topic
	GroupID         string
	ProducerRetries int
}

var (
	Cfg         Config
	KafkaClient sarama.Client
	Producer    sarama.SyncProducer
)

func BuildBaseConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0

	// Producer
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if Cfg.ProducerRetries <= 0 {
		Cfg.ProducerRetries = 3
	}
	cfg.Producer.Retry.Max = Cfg.ProducerRetries
	// Key 控制分区：同一 ordering key 落同一分区，保住同元组的投递序
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	// Consumer
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true

	// Net
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

// InitKafkaClient 初始化客户端
func InitKafkaClient(conf Config) error {
	Cfg = conf
	cfg := BuildBaseConfig()
	c, err := sarama.NewClient(Cfg.Brokers, cfg)
	if err != nil {
		return err
	}
	KafkaClient = c
	return nil
}

// InitSyncProducerFromClient 同步生产者
func InitSyncProducerFromClient() error {
	p, err := sarama.NewSyncProducerFromClient(KafkaClient)
	if err != nil {
		return err
	}
	Producer = p
	return nil
}
