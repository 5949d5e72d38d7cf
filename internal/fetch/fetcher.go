// Package fetch はリモートのデータセットを作業ディレクトリへダウンロードします。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/semaphore"

	"github.com/yourusername/sort-forge/internal/apperr"
	"github.com/yourusername/sort-forge/internal/storage"
)

// Options は Fetcher の設定です。
type Options struct {
	PoolSize int           // 同時ダウンロード数の上限
	Timeout  time.Duration // 0 の場合はタイムアウトなし
	Client   *http.Client  // nil の場合は Timeout から生成
	Logger   *slog.Logger
}

// Fetcher は HTTP でデータを取得し storage に保存します。
type Fetcher struct {
	client *http.Client
	store  *storage.Local
	pool   *semaphore.Weighted
	logger *slog.Logger
}

// New は Fetcher を作成します。
func New(store *storage.Local, opts Options) (*Fetcher, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if opts.PoolSize <= 0 {
		return nil, fmt.Errorf("fetch pool size must be positive (got %d)", opts.PoolSize)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: client,
		store:  store,
		pool:   semaphore.NewWeighted(int64(opts.PoolSize)),
		logger: logger,
	}, nil
}

// Fetch は u の内容を name として保存し、そのバイト数を返します。
// 失敗時は保存途中のファイルを削除します。
func (f *Fetcher) Fetch(ctx context.Context, u *url.URL, name string) (int64, error) {
	if u == nil {
		return 0, apperr.ErrInvalidURL
	}
	if err := f.pool.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer f.pool.Release(1)

	size, err := f.download(ctx, u, name)
	if err != nil {
		_ = f.store.Remove(name)
		return 0, err
	}
	if size == 0 {
		_ = f.store.Remove(name)
		return 0, apperr.ErrEmptyData
	}
	if err := f.checkText(name); err != nil {
		_ = f.store.Remove(name)
		return 0, err
	}

	f.logger.Debug("dataset downloaded", "url", u.Redacted(), "bytes", size)
	return size, nil
}

func (f *Fetcher) download(ctx context.Context, u *url.URL, name string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrInvalidURL, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrRemote, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, apperr.Wrap(apperr.ErrRemote, fmt.Errorf("unexpected status %s", resp.Status))
	}

	out, err := f.store.Create(name)
	if err != nil {
		return 0, fmt.Errorf("create download: %w", err)
	}
	size, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil && cerr != nil {
		return 0, fmt.Errorf("close download: %w", cerr)
	}
	if err != nil {
		// 本文の途中で切断された場合もリモート側の失敗として扱う
		return 0, apperr.Wrap(apperr.ErrRemote, err)
	}
	return size, nil
}

// checkText は保存済みファイルの先頭を判定し、テキスト以外を拒否します。
func (f *Fetcher) checkText(name string) error {
	path, err := f.store.Path(name)
	if err != nil {
		return err
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("detect content type: %w", err)
	}
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return nil
		}
	}
	return apperr.Wrap(apperr.ErrMalformedData, fmt.Errorf("unexpected content type %s", mtype.String()))
}
