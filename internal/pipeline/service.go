// Package pipeline はジョブ一件分の処理（取得、分割読み込み、並列ソート、マージ、書き出し）をまとめます。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/yourusername/sort-forge/internal/ingest"
	"github.com/yourusername/sort-forge/internal/jobs"
	"github.com/yourusername/sort-forge/internal/result"
	"github.com/yourusername/sort-forge/internal/sorting"
	"github.com/yourusername/sort-forge/internal/storage"
)

// Fetcher はリモートデータを storage に保存します。
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL, name string) (int64, error)
}

// Options は Service の設定です。
type Options struct {
	BufferSize int // 0 の場合は ingest.DefaultBufferSize
	MaxTail    int // 0 は無制限
	Logger     *slog.Logger
}

// Service は jobs.Runner の実装です。
type Service struct {
	fetcher    Fetcher
	store      *storage.Local
	writer     *result.Writer
	bufferSize int
	maxTail    int
	logger     *slog.Logger
}

// New は Service を作成します。
func New(fetcher Fetcher, store *storage.Local, opts Options) (*Service, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = ingest.DefaultBufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		fetcher:    fetcher,
		store:      store,
		writer:     result.NewWriter(store),
		bufferSize: bufferSize,
		maxTail:    opts.MaxTail,
		logger:     logger,
	}, nil
}

// Run はジョブを処理し、書き出した結果ファイルの情報を返します。
// ダウンロードした生データは成否に関わらず削除します。
func (s *Service) Run(ctx context.Context, job jobs.ValidatedJob) (jobs.Ready, error) {
	logger := s.logger.With("job_id", job.ID)
	rawName := job.ID + ".raw"
	defer func() {
		if err := s.store.Remove(rawName); err != nil {
			logger.Warn("failed to remove raw data", "err", err)
		}
	}()

	size, err := s.fetcher.Fetch(ctx, job.URL, rawName)
	if err != nil {
		return jobs.Ready{}, err
	}
	logger.Debug("data fetched", "bytes", size)

	sorted, chunks, err := s.sortChunks(ctx, logger, rawName, job.Concurrency)
	if err != nil {
		return jobs.Ready{}, err
	}
	logger.Debug("chunks sorted", "chunks", chunks)

	out, err := s.writer.Write(job.ID+".json", sorting.MergeSlices(sorted...))
	if err != nil {
		return jobs.Ready{}, err
	}
	logger.Debug("result written", "numbers", out.Count, "bytes", out.Bytes)
	return jobs.Ready{
		Path:     out.Path,
		Count:    out.Count,
		Checksum: out.Checksum,
	}, nil
}

// sortChunks はチャンク毎に並列ソートし、チャンク単位のソート済みスライスを返します。
// レーンはこのジョブ専用で、戻る前に停止します。
func (s *Service) sortChunks(ctx context.Context, logger *slog.Logger, rawName string, concurrency int) ([][]int, int, error) {
	src, err := s.store.Open(rawName)
	if err != nil {
		return nil, 0, fmt.Errorf("open raw data: %w", err)
	}
	defer src.Close()

	sorter, err := sorting.NewSorter(concurrency, sorting.WithLogger(logger))
	if err != nil {
		return nil, 0, err
	}
	logger.Debug("sort lanes ready", "lanes", sorter.Concurrency())
	defer func() {
		if cerr := sorter.Close(); cerr != nil {
			logger.Warn("sort lanes reported a failure", "err", cerr)
		}
	}()

	reader := ingest.NewReader(src,
		ingest.WithBufferSize(s.bufferSize),
		ingest.WithMaxTail(s.maxTail),
	)

	var sorted [][]int
	for chunk, err := range reader.Chunks() {
		if err != nil {
			return nil, 0, err
		}
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		values, err := sorter.Sort(chunk)
		if err != nil {
			return nil, 0, err
		}
		sorted = append(sorted, values)
	}
	return sorted, len(sorted), nil
}
