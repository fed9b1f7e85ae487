package recognition

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"

	"github.com/liuscraft/orion-stt/internal/logging"
)

type EventHandler func(Event)

// EventBus delivers events to subscribers asynchronously, one at a time and
// in publish order across all event types. Handlers must not publish.
type EventBus interface {
	Publish(event Event)
	// Subscribe registers handler for eventType and returns a function that
	// removes it.
	Subscribe(eventType EventType, handler EventHandler) (unsubscribe func())
	// Wait blocks until every published event has been handled.
	Wait()
}

const eventTopic = "recognition:event"

type subscription struct {
	id      uint64
	handler EventHandler
}

// eventBus 所有事件走同一个事务型异步 topic，保证跨类型的发布顺序；
// 订阅按 ID 管理，因此可以取消单个订阅。
// 投递进度由 pending 计数跟踪：evbus.WaitAsync 的 WaitGroup 不能与并发的
// Publish 同时使用。
type eventBus struct {
	bus evbus.Bus

	mu          sync.RWMutex
	nextID      uint64
	subscribers map[EventType][]subscription

	pendingMu sync.Mutex
	drained   *sync.Cond
	pending   int
}

func NewEventBus() EventBus {
	eb := &eventBus{
		bus:         evbus.New(),
		subscribers: make(map[EventType][]subscription),
	}
	eb.drained = sync.NewCond(&eb.pendingMu)
	if err := eb.bus.SubscribeAsync(eventTopic, eb.dispatch, true); err != nil {
		// only fails when the handler is not a func
		panic(err)
	}
	return eb
}

func (eb *eventBus) Publish(event Event) {
	eb.pendingMu.Lock()
	eb.pending++
	eb.pendingMu.Unlock()
	eb.bus.Publish(eventTopic, event)
}

func (eb *eventBus) Subscribe(eventType EventType, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	id := eb.nextID
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { eb.unsubscribe(eventType, id) })
	}
}

func (eb *eventBus) unsubscribe(eventType EventType, id uint64) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[eventType]
	for i, s := range subs {
		if s.id == id {
			eb.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Wait returns once every event published before or during the call has
// been handled. It is safe to call while other goroutines publish.
func (eb *eventBus) Wait() {
	eb.pendingMu.Lock()
	defer eb.pendingMu.Unlock()
	for eb.pending > 0 {
		eb.drained.Wait()
	}
}

func (eb *eventBus) delivered() {
	eb.pendingMu.Lock()
	defer eb.pendingMu.Unlock()
	eb.pending--
	if eb.pending == 0 {
		eb.drained.Broadcast()
	}
}

func (eb *eventBus) dispatch(event Event) {
	defer eb.delivered()

	eb.mu.RLock()
	subs := eb.subscribers[event.Type()]
	eb.mu.RUnlock()

	for _, s := range subs {
		eb.call(s.handler, event)
	}
}

func (eb *eventBus) call(handler EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("EventBus: %s handler panicked: %v", event.Type(), r)
		}
	}()
	handler(event)
}
