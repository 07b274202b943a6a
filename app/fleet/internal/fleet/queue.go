package fleet

import "sync"

// pendingQueue 幂等的后进先出待处理队列。
// 重复入队被忽略，出队返回最近入队的元素。
type pendingQueue struct {
	mu    sync.Mutex
	items []string
	seen  map[string]struct{}
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{seen: make(map[string]struct{})}
}

// Push 入队，已在队列中时返回 false
func (q *pendingQueue) Push(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.seen[name]; ok {
		return false
	}
	q.seen[name] = struct{}{}
	q.items = append(q.items, name)
	return true
}

// Pop 出队最近入队的元素，队列为空时返回 false
func (q *pendingQueue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", false
	}
	last := len(q.items) - 1
	name := q.items[last]
	q.items = q.items[:last]
	delete(q.seen, name)
	return name, true
}

// Len 返回队列长度
func (q *pendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot 返回队列内容的副本，入队顺序排列
func (q *pendingQueue) Snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.items...)
}
