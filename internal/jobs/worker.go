// Package jobs は非同期ジョブ管理機能を提供します。
//
// ジョブは queued → progress → ready/error の順にのみ遷移します。
// ワーカーは一本のキューを共有し、停止要素を受け取ると終了します。
package jobs

import (
	"context"
	"fmt"
	"log/slog"
)

func (m *Manager) runWorker(id int) {
	defer m.wg.Done()
	logger := m.logger.With("worker", id)
	logger.Debug("worker started")

	for {
		item, err := m.queue.Get(context.Background())
		if err != nil {
			logger.Error("queue closed", "err", err)
			return
		}
		if item.Stop {
			logger.Debug("worker stopping")
			return
		}
		m.process(logger.With("job_id", item.Job.ID), item.Job)
	}
}

// process はジョブを一件処理します。すべてのエラーと panic はここで状態に変換されます。
func (m *Manager) process(logger *slog.Logger, job Job) {
	ctx := context.Background()
	logger.Debug("job picked up")

	if err := m.setStatus(ctx, job.ID, InProgress{}); err != nil {
		logger.Error("failed to mark job in progress", "err", err)
	}

	ready, err := m.execute(ctx, job)
	if err != nil {
		m.failJobWithError(ctx, logger, job.ID, err)
		return
	}
	m.finishJob(ctx, logger, job.ID, ready)
}

func (m *Manager) execute(ctx context.Context, job Job) (ready Ready, err error) {
	defer func() {
		if r := recover(); r != nil {
			ready, err = Ready{}, fmt.Errorf("panic: %v", r)
		}
	}()

	validated, err := m.validator.Validate(job)
	if err != nil {
		return Ready{}, err
	}
	return m.runner.Run(ctx, validated)
}
