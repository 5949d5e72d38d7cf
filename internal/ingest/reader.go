// Package ingest は区切り文字で並んだ整数のバイト列を、全体をメモリに載せずにチャンク単位で読み込みます。
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"

	"github.com/yourusername/sort-forge/internal/apperr"
)

const (
	// DefaultBufferSize は1回の読み込みで要求するバイト数です。
	DefaultBufferSize = 10240
	// Separator は数値の区切りです。
	Separator = ", "
)

var separator = []byte(Separator)

// Option は Reader の設定です。
type Option func(*Reader)

// WithBufferSize は読み込みサイズを設定します。1 未満は無視します。
func WithBufferSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.bufferSize = n
		}
	}
}

// WithMaxTail は区切りが見つかるまで持ち越せる最大バイト数を設定します。0 は無制限です。
func WithMaxTail(n int) Option {
	return func(r *Reader) {
		if n >= 0 {
			r.maxTail = n
		}
	}
}

// Reader はバイト列から整数のチャンクを読み出します。
//
// 毎回固定サイズを読み込み、最後の区切り以降のバイトは次の読み込みの先頭に持ち越します。
// そのため読み込み境界をまたぐ数値も欠けずに解析されます。
type Reader struct {
	src        io.Reader
	bufferSize int
	maxTail    int

	buf  []byte
	tail []byte
	eof  bool
	// openToken は直前の分割が区切りで終わり、次のトークンがまだ現れていないことを示します。
	openToken bool
}

// NewReader は src を読む Reader を作成します。
func NewReader(src io.Reader, opts ...Option) *Reader {
	r := &Reader{
		src:        src,
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.buf = make([]byte, r.bufferSize)
	return r
}

// Next は次のチャンクを返します。読み切って残りもない場合は io.EOF を返します。
// 整数でないトークンは apperr.ErrMalformedData になります。
func (r *Reader) Next() ([]int, error) {
	for {
		n := 0
		if !r.eof {
			var err error
			n, err = io.ReadFull(r.src, r.buf)
			switch {
			case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
				r.eof = true
			case err != nil:
				return nil, fmt.Errorf("read source: %w", err)
			}
		}

		data := append(r.tail, r.buf[:n]...)
		r.tail = nil
		if len(data) == 0 {
			if r.openToken {
				r.openToken = false
				return nil, apperr.Wrap(apperr.ErrMalformedData, errors.New("data ends with a separator"))
			}
			return nil, io.EOF
		}
		r.openToken = false

		var head []byte
		if len(data) < r.bufferSize || n == 0 {
			head = data
		} else {
			idx := bytes.LastIndex(data, separator)
			if idx < 0 {
				if r.maxTail > 0 && len(data) > r.maxTail {
					return nil, apperr.Wrap(apperr.ErrTokenTooLong, fmt.Errorf("%d bytes without separator", len(data)))
				}
				r.tail = data
				continue
			}
			head, r.tail = data[:idx], data[idx+len(separator):]
			r.openToken = len(r.tail) == 0
		}

		return parseNumbers(head)
	}
}

// Chunks は残りのチャンクを順に返します。最初のエラーを返した時点で終了し、io.EOF は返しません。
func (r *Reader) Chunks() iter.Seq2[[]int, error] {
	return func(yield func([]int, error) bool) {
		for {
			chunk, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}

func parseNumbers(head []byte) ([]int, error) {
	numbers := make([]int, 0, bytes.Count(head, separator)+1)
	for token := range bytes.SplitSeq(head, separator) {
		v, err := strconv.Atoi(string(bytes.TrimSpace(token)))
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrMalformedData, err)
		}
		numbers = append(numbers, v)
	}
	return numbers, nil
}
