// Package result はソート済みの列を、完了時にクライアントへ返す JSON 文書として保存します。
package result

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/yourusername/sort-forge/internal/storage"
)

const (
	prefix    = `{"state": "ready", "data": [`
	suffix    = `]}`
	separator = ", "
)

// Output は書き込んだ結果ファイルの情報です。
type Output struct {
	Path     string
	Count    int
	Bytes    int64
	Checksum string
}

// Writer は列を storage へ逐次書き込みます。
type Writer struct {
	store *storage.Local
}

// NewWriter は Writer を作成します。
func NewWriter(store *storage.Local) *Writer {
	return &Writer{store: store}
}

// Write は values を {"state": "ready", "data": [v1, v2, ..., vn]} の形で name に保存します。
// 列全体をメモリに保持することはありません。失敗時は書きかけのファイルを削除します。
func (w *Writer) Write(name string, values iter.Seq[int]) (*Output, error) {
	path, err := w.store.Path(name)
	if err != nil {
		return nil, err
	}
	f, err := w.store.Create(name)
	if err != nil {
		return nil, fmt.Errorf("create result: %w", err)
	}

	hash := xxhash.New()
	count, err := encode(io.MultiWriter(f, hash), values)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close result: %w", cerr)
	}
	if err != nil {
		_ = w.store.Remove(name)
		return nil, err
	}
	size, err := w.store.Size(name)
	if err != nil {
		_ = w.store.Remove(name)
		return nil, fmt.Errorf("stat result: %w", err)
	}

	return &Output{
		Path:     path,
		Count:    count,
		Bytes:    size,
		Checksum: strconv.FormatUint(hash.Sum64(), 16),
	}, nil
}

func encode(dst io.Writer, values iter.Seq[int]) (int, error) {
	bw := bufio.NewWriter(dst)
	if _, err := bw.WriteString(prefix); err != nil {
		return 0, fmt.Errorf("write result: %w", err)
	}

	count := 0
	var scratch [20]byte
	for v := range values {
		if count > 0 {
			if _, err := bw.WriteString(separator); err != nil {
				return count, fmt.Errorf("write result: %w", err)
			}
		}
		if _, err := bw.Write(strconv.AppendInt(scratch[:0], int64(v), 10)); err != nil {
			return count, fmt.Errorf("write result: %w", err)
		}
		count++
	}

	if _, err := bw.WriteString(suffix); err != nil {
		return count, fmt.Errorf("write result: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return count, fmt.Errorf("flush result: %w", err)
	}
	return count, nil
}
