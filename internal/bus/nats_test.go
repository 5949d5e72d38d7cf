package bus

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yourusername/sort-forge/internal/jobs"
)

type capturePublisher struct {
	subject string
	payload []byte
}

func (c *capturePublisher) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.subject, c.payload = subject, b
	return nil
}

func TestStatusPublisherPayload(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		status jobs.Status
		want   string
	}{
		{"queued", jobs.Queued{}, `{"job_id":"j1","state":"queued","data":null,"happened_at":1714564800}`},
		{"progress", jobs.InProgress{}, `{"job_id":"j1","state":"progress","data":null,"happened_at":1714564800}`},
		{"ready", jobs.Ready{Path: "/w/j1.json", Count: 2}, `{"job_id":"j1","state":"ready","data":"/w/j1.json","happened_at":1714564800}`},
		{"error", jobs.Failed{Message: "remote error"}, `{"job_id":"j1","state":"error","data":"remote error","happened_at":1714564800}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture := &capturePublisher{}
			p := newStatusPublisher(capture, "")
			if err := p.Publish(context.Background(), jobs.Event{JobID: "j1", Status: tt.status, HappenedAt: at}); err != nil {
				t.Fatalf("Publish returned error: %v", err)
			}
			if capture.subject != DefaultStatusSubject {
				t.Fatalf("subject = %q, want %q", capture.subject, DefaultStatusSubject)
			}
			if string(capture.payload) != tt.want {
				t.Fatalf("payload = %s\nwant %s", capture.payload, tt.want)
			}
		})
	}
}

func TestStatusPublisherRejectsNilStatus(t *testing.T) {
	p := newStatusPublisher(&capturePublisher{}, "custom.subject")
	if err := p.Publish(context.Background(), jobs.Event{JobID: "j1"}); err == nil {
		t.Fatal("expected error for nil status")
	}
}

func TestStatusPublisherOverNATS(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}
	client, err := Connect(url)
	if err != nil {
		t.Skipf("nats not reachable: %v", err)
	}
	defer client.Close()

	sub, err := client.Conn().SubscribeSync("test.sorter.status")
	if err != nil {
		t.Fatalf("SubscribeSync: %v", err)
	}
	if err := client.Conn().Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	p := NewStatusPublisher(client, "test.sorter.status")
	if err := p.Publish(context.Background(), jobs.Event{JobID: "j2", Status: jobs.Queued{}, HappenedAt: time.Now()}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	var msg *nats.Msg
	if msg, err = sub.NextMsg(2 * time.Second); err != nil {
		t.Fatalf("NextMsg: %v", err)
	}
	var event StatusEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.JobID != "j2" || event.State != jobs.StateQueued {
		t.Fatalf("unexpected event: %+v", event)
	}
}
