package jobs

import (
	"context"
	"net/url"
	"time"
)

// State はジョブ状態のワイヤ表現です。
type State string

const (
	StateQueued   State = "queued"
	StateProgress State = "progress"
	StateReady    State = "ready"
	StateFailed   State = "error"
)

// Job は投入されたままの未検証ジョブです。
type Job struct {
	ID          string
	Concurrency string
	URL         string
}

// ValidatedJob は Validator を通過したジョブです。
type ValidatedJob struct {
	ID          string
	Concurrency int
	URL         *url.URL
}

// Status はジョブの実行状態です。Queued, InProgress, Ready, Failed のいずれかです。
type Status interface {
	State() State
	sealed()
}

// Queued はワーカー待ちの状態です。
type Queued struct{}

// InProgress はワーカーが処理中の状態です。
type InProgress struct{}

// Ready は結果ファイルが書き込み済みの状態です。
type Ready struct {
	Path     string
	Count    int
	Checksum string
}

// Failed はジョブ失敗時の状態です。Message は利用者に返してよい文言です。
type Failed struct {
	Message string
}

func (Queued) State() State     { return StateQueued }
func (InProgress) State() State { return StateProgress }
func (Ready) State() State      { return StateReady }
func (Failed) State() State     { return StateFailed }

func (Queued) sealed()     {}
func (InProgress) sealed() {}
func (Ready) sealed()      {}
func (Failed) sealed()     {}

// Data は状態に付随するワイヤ上の値を返します（ready はファイルパス、error はメッセージ）。
func Data(s Status) any {
	switch v := s.(type) {
	case Ready:
		return v.Path
	case Failed:
		return v.Message
	default:
		return nil
	}
}

// Terminal は終端状態かどうかを返します。
func Terminal(s Status) bool {
	switch s.(type) {
	case Ready, Failed:
		return true
	default:
		return false
	}
}

func rank(s Status) int {
	switch s.(type) {
	case nil:
		return -1
	case Queued:
		return 0
	case InProgress:
		return 1
	default:
		return 2
	}
}

// canTransition は queued → progress → {ready|error} の単調な遷移のみ許可します。
func canTransition(from, to Status) bool {
	if to == nil || Terminal(from) {
		return false
	}
	if from == nil {
		_, ok := to.(Queued)
		return ok
	}
	return rank(to) > rank(from)
}

// Event は状態遷移の通知です。
type Event struct {
	JobID      string
	Status     Status
	HappenedAt time.Time
}

// EventPublisher は状態遷移を外部へ通知します。
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher は何もしない EventPublisher です。
type NopPublisher struct{}

// Publish は常に nil を返します。
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Runner は検証済みジョブを最後まで処理し、結果を返します。
type Runner interface {
	Run(ctx context.Context, job ValidatedJob) (Ready, error)
}
