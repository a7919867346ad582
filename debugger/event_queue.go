package debugger

import (
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// EventQueue 引擎事件队列
// 引擎的读协程负责推入事件，界面线程在定时器中非阻塞地取出事件
type EventQueue struct {
	lock  sync.Mutex
	queue *linkedlistqueue.Queue
}

func NewEventQueue() *EventQueue {
	return &EventQueue{
		queue: linkedlistqueue.New(),
	}
}

// Push 推入一个事件
func (q *EventQueue) Push(event *Event) {
	if event == nil {
		return
	}
	q.lock.Lock()
	defer q.lock.Unlock()
	q.queue.Enqueue(event)
}

// Pop 取出一个事件，队列为空时返回false
func (q *EventQueue) Pop() (*Event, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	value, ok := q.queue.Dequeue()
	if !ok {
		return nil, false
	}
	event, ok := value.(*Event)
	return event, ok
}

// Len 当前待处理的事件数量
func (q *EventQueue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.queue.Size()
}
