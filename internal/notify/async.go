package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// DefaultAsyncBuffer 异步转发默认缓冲
const DefaultAsyncBuffer = 64

// AsyncNotifier 在独立 goroutine 中按顺序转发事件
// 网络类订阅方（网关、MQTT）通过它接入，缓冲满时丢弃事件并记录日志
type AsyncNotifier struct {
	next   Notifier
	events chan AlertEvent
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

// NewAsyncNotifier 创建并启动异步转发
func NewAsyncNotifier(next Notifier, buffer int, logger *zap.Logger) *AsyncNotifier {
	if buffer <= 0 {
		buffer = DefaultAsyncBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &AsyncNotifier{
		next:   next,
		events: make(chan AlertEvent, buffer),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
	go a.run()
	return a
}

// Notify 放入缓冲，不阻塞
func (a *AsyncNotifier) Notify(_ context.Context, event AlertEvent) {
	select {
	case <-a.quit:
		return
	default:
	}

	select {
	case a.events <- event:
	default:
		a.logger.Warn("Notification buffer full, dropping event",
			zap.String("alert_id", event.Alert.ID),
			zap.String("event", string(event.Type)),
		)
	}
}

func (a *AsyncNotifier) run() {
	defer close(a.done)
	ctx := context.Background()
	for {
		select {
		case ev := <-a.events:
			a.next.Notify(ctx, ev)
		case <-a.quit:
			// 发送剩余事件
			for {
				select {
				case ev := <-a.events:
					a.next.Notify(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

// Close 停止接收并等待缓冲中的事件发送完
func (a *AsyncNotifier) Close() {
	a.once.Do(func() { close(a.quit) })
	<-a.done
}
