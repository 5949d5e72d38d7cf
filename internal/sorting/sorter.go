package sorting

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrLaneFailed はレーンが担当範囲をソートできなかった場合に返されます。
	ErrLaneFailed = errors.New("sorting: sort lane failed")
	// ErrSorterClosed は Close 後の Sort で返されます。
	ErrSorterClosed = errors.New("sorting: sorter is closed")
)

// SortFunc はスライスを昇順に並べ替えます。その場で並べ替えてもかまいません。
type SortFunc func([]int) []int

// Option は Sorter の設定です。
type Option func(*Sorter)

// WithLogger はレーンのログ出力先を設定します。
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sorter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSortFunc はレーン内のソートを PartitionSort から差し替えます。
func WithSortFunc(fn SortFunc) Option {
	return func(s *Sorter) {
		if fn != nil {
			s.sortFn = fn
		}
	}
}

type laneResult struct {
	values []int
	err    error
}

// lane はソート用の goroutine です。in を閉じると停止し、受け取った順に out へ結果を返します。
type lane struct {
	id  int
	in  chan []int
	out chan laneResult
}

// Sorter はジョブ一件の間だけ固定数のソートレーンを持ちます。
// Sort に渡したチャンクは連続した部分範囲に分けられ、レーン毎にソートされた後マージされます。
// 処理の成否に関わらず最後に Close を呼んでください。Close はレーンで起きた最初の失敗を返します。
type Sorter struct {
	lanes  []*lane
	group  errgroup.Group
	sortFn SortFunc
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewSorter は concurrency 本のレーンを起動します。
func NewSorter(concurrency int, opts ...Option) (*Sorter, error) {
	if concurrency <= 0 {
		return nil, fmt.Errorf("sorting: concurrency must be positive (got %d)", concurrency)
	}

	s := &Sorter{
		sortFn: PartitionSort,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.lanes = make([]*lane, concurrency)
	for i := range s.lanes {
		l := &lane{
			id:  i,
			in:  make(chan []int),
			out: make(chan laneResult, 1),
		}
		s.lanes[i] = l
		s.group.Go(func() error {
			return s.runLane(l)
		})
	}
	s.logger.Debug("sort lanes started", "lanes", concurrency)
	return s, nil
}

// Concurrency はレーン数を返します。
func (s *Sorter) Concurrency() int { return len(s.lanes) }

// Sort はチャンクを一つソートし、昇順に並んだ新しいスライスを返します。
// numbers は部分範囲毎にその場で並べ替えられます。
func (s *Sorter) Sort(numbers []int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSorterClosed
	}
	if len(numbers) == 0 {
		return []int{}, nil
	}

	size := (len(numbers) + len(s.lanes) - 1) / len(s.lanes)
	used := make([]*lane, 0, len(s.lanes))
	for i, offset := 0, 0; offset < len(numbers); i, offset = i+1, offset+size {
		end := min(offset+size, len(numbers))
		s.lanes[i].in <- numbers[offset:end]
		used = append(used, s.lanes[i])
	}
	s.logger.Debug("chunk dispatched", "numbers", len(numbers), "lanes", len(used), "range_size", size)

	// 失敗しても使ったレーンはすべて読み切る（次のチャンクに古い結果を残さない）
	parts := make([][]int, 0, len(used))
	var failed error
	for _, l := range used {
		res := <-l.out
		if res.err != nil {
			if failed == nil {
				failed = fmt.Errorf("%w: lane %d: %v", ErrLaneFailed, l.id, res.err)
			}
			continue
		}
		parts = append(parts, res.values)
	}
	if failed != nil {
		return nil, failed
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return slices.AppendSeq(make([]int, 0, len(numbers)), MergeSlices(parts...)), nil
}

// Close は全レーンを停止し終了を待ちます。レーンで失敗があった場合は最初のエラーを返します。
// 複数回呼んでも安全です。
func (s *Sorter) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, l := range s.lanes {
		close(l.in)
	}
	s.mu.Unlock()

	err := s.group.Wait()
	s.logger.Debug("sort lanes stopped", "lanes", len(s.lanes))
	return err
}

// runLane は in が閉じるまでソートを続け、最初に失敗した範囲のエラーを返します。
func (s *Sorter) runLane(l *lane) error {
	var first error
	for numbers := range l.in {
		values, err := s.sortRange(numbers)
		if err != nil {
			s.logger.Warn("sort lane failed", "lane", l.id, "numbers", len(numbers), "err", err)
			if first == nil {
				first = fmt.Errorf("%w: lane %d: %v", ErrLaneFailed, l.id, err)
			}
		}
		l.out <- laneResult{values: values, err: err}
	}
	return first
}

func (s *Sorter) sortRange(numbers []int) (values []int, err error) {
	defer func() {
		if r := recover(); r != nil {
			values, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return s.sortFn(numbers), nil
}
