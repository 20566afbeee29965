package rocketmq

import (
	"Storefront/config"
	"Storefront/pkg/log"
	"context"
	"errors"
	"sync"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/apache/rocketmq-client-go/v2/rlog"
	"go.uber.org/zap"
)

// Handler 消费回调，返回错误时消息会被重新投递
type Handler func(ctx context.Context, body []byte) error

// Publisher 消息投递
type Publisher interface {
	Publish(ctx context.Context, topic, key string, body []byte) error
}

// Subscriber 消息订阅，Subscribe 需要在 Start 之前调用
type Subscriber interface {
	Subscribe(topic string, h Handler) error
	Start() error
	Shutdown() error
}

type Broker interface {
	Publisher
	Subscriber
}

func init() {
	rlog.SetLogLevel("error")
}

// NewBroker 开启 rocketmq 时走 MQ，否则进程内投递
func NewBroker(conf *config.RocketMQConfig) (Broker, func(), error) {
	if conf == nil || !conf.Enabled {
		log.L.Info("rocketmq disabled, use in-process broker")
		b := NewLocal()
		return b, func() { _ = b.Shutdown() }, nil
	}

	p, err := InitProducer(conf)
	if err != nil {
		return nil, nil, err
	}
	c, err := InitConsumer(conf)
	if err != nil {
		_ = p.Shutdown()
		return nil, nil, err
	}
	r := &Rocketmq{RocketmqProducer: p, RocketmqConsumer: c}
	return r, func() { _ = r.Shutdown() }, nil
}

type Rocketmq struct {
	RocketmqProducer rocketmq.Producer
	RocketmqConsumer rocketmq.PushConsumer
}

var _ Broker = (*Rocketmq)(nil)

func InitProducer(cfg *config.RocketMQConfig) (rocketmq.Producer, error) {
	retry := cfg.Producer.Retry
	if retry <= 0 {
		retry = 2
	}
	p, err := rocketmq.NewProducer(
		producer.WithNameServer(cfg.NameServer),
		producer.WithGroupName(cfg.Producer.Group),
		producer.WithRetry(retry),
	)
	if err != nil {
		return nil, err
	}
	if err = p.Start(); err != nil {
		return nil, err
	}
	log.L.Info("init producer success")
	return p, nil
}

func InitConsumer(cfg *config.RocketMQConfig) (rocketmq.PushConsumer, error) {
	return rocketmq.NewPushConsumer(
		consumer.WithNameServer(cfg.NameServer),
		consumer.WithGroupName(cfg.Consumer.Group),
		consumer.WithConsumerModel(consumer.Clustering),
	)
}

func (p *Rocketmq) Publish(ctx context.Context, topic, key string, body []byte) error {
	msg := primitive.NewMessage(topic, body)
	if key != "" {
		msg.WithKeys([]string{key})
	}

	// 发送同步消息
	res, err := p.RocketmqProducer.SendSync(ctx, msg)
	if err != nil {
		return err
	}
	if res.Status != primitive.SendOK {
		return errors.New("rocketmq send status: " + res.String())
	}
	log.L.Debug("send message success", zap.String("topic", topic), zap.String("msg_id", res.MsgID))
	return nil
}

func (p *Rocketmq) Subscribe(topic string, h Handler) error {
	return p.RocketmqConsumer.Subscribe(topic, consumer.MessageSelector{},
		func(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
			for _, m := range msgs {
				if err := h(ctx, m.Body); err != nil {
					log.L.Warn("consume message failed, retry later",
						zap.String("topic", m.Topic), zap.String("msg_id", m.MsgId), zap.Error(err))
					return consumer.ConsumeRetryLater, nil
				}
			}
			return consumer.ConsumeSuccess, nil
		})
}

func (p *Rocketmq) Start() error {
	return p.RocketmqConsumer.Start()
}

func (p *Rocketmq) Shutdown() error {
	return errors.Join(p.RocketmqConsumer.Shutdown(), p.RocketmqProducer.Shutdown())
}

// Local 进程内投递：Publish 同步调用所有订阅者，任一失败即返回错误，由调用方重试
type Local struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

var _ Broker = (*Local)(nil)

func NewLocal() *Local {
	return &Local{handlers: make(map[string][]Handler)}
}

func (l *Local) Publish(ctx context.Context, topic, _ string, body []byte) error {
	l.mu.RLock()
	hs := l.handlers[topic]
	l.mu.RUnlock()

	var errs []error
	for _, h := range hs {
		if err := h(ctx, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Local) Subscribe(topic string, h Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[topic] = append(l.handlers[topic], h)
	return nil
}

func (l *Local) Start() error { return nil }

func (l *Local) Shutdown() error { return nil }

// ProvidePublisher relay 只需要投递能力
func ProvidePublisher(b Broker) Publisher {
	return b
}
