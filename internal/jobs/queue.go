package jobs

import (
	"context"
	"sync"
)

// Item はキューの要素です。Stop が true の場合は受け取ったワーカーを終了させます。
type Item struct {
	Job  Job
	Stop bool
}

// Queue は上限のない FIFO キューです。Put はブロックしません。
type Queue struct {
	mu    sync.Mutex
	items []Item
	wake  chan struct{}
}

// NewQueue は空の Queue を作成します。
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Put はジョブを末尾に追加します。
func (q *Queue) Put(job Job) {
	q.push(Item{Job: job})
}

// PutStop は停止の合図を末尾に追加します。
func (q *Queue) PutStop() {
	q.push(Item{Stop: true})
}

func (q *Queue) push(item Item) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.signal()
}

// Get は先頭の要素を取り出します。空の場合は要素が届くか ctx が終わるまで待ちます。
func (q *Queue) Get(ctx context.Context) (Item, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = Item{}
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			// 待機中の他の Get へ起床を引き継ぐ
			if remaining > 0 {
				q.signal()
			}
			return item, nil
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return Item{}, ctx.Err()
		}
	}
}

// Len は待機中の要素数を返します。
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
