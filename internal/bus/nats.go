// Package bus はジョブ状態の遷移を NATS へ配信します。
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yourusername/sort-forge/internal/jobs"
)

// DefaultStatusSubject は状態イベントの既定サブジェクトです。
const DefaultStatusSubject = "sorter.jobs.status"

// Client は NATS 接続の薄いラッパーです。
type Client struct{ nc *nats.Conn }

// Connect は再接続し続ける設定で NATS に接続します。
func Connect(url string) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name("sort-forge"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Client{nc: nc}, nil
}

// Close は送信待ちのメッセージを流してから接続を閉じます。
func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

// Conn は内部の接続を返します。
func (c *Client) Conn() *nats.Conn { return c.nc }

// PublishJSON は v を JSON にして subject へ送信します。
func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.nc.Publish(subject, b)
}

// StatusEvent は配信される状態イベントです。
type StatusEvent struct {
	JobID      string     `json:"job_id"`
	State      jobs.State `json:"state"`
	Data       any        `json:"data"`
	HappenedAt int64      `json:"happened_at"`
}

// NewStatusEvent は jobs.Event を配信形式に変換します。
func NewStatusEvent(event jobs.Event) StatusEvent {
	return StatusEvent{
		JobID:      event.JobID,
		State:      event.Status.State(),
		Data:       jobs.Data(event.Status),
		HappenedAt: event.HappenedAt.Unix(),
	}
}

type jsonPublisher interface {
	PublishJSON(subject string, v any) error
}

// StatusPublisher は jobs.EventPublisher を NATS で実装します。
type StatusPublisher struct {
	pub     jsonPublisher
	subject string
}

// NewStatusPublisher は StatusPublisher を作成します。subject が空の場合は既定値を使います。
func NewStatusPublisher(client *Client, subject string) *StatusPublisher {
	return newStatusPublisher(client, subject)
}

func newStatusPublisher(pub jsonPublisher, subject string) *StatusPublisher {
	if subject == "" {
		subject = DefaultStatusSubject
	}
	return &StatusPublisher{pub: pub, subject: subject}
}

// Publish は状態イベントを送信します。
func (p *StatusPublisher) Publish(ctx context.Context, event jobs.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Status == nil {
		return errors.New("event status is nil")
	}
	return p.pub.PublishJSON(p.subject, NewStatusEvent(event))
}
