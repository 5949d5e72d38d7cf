// Package sorting はメモリ上のソート処理（分割ソート、遅延 k-way マージ、並列ソートレーン）を提供します。
package sorting

import (
	"iter"
	"slices"
)

// source はマージ入力の読み出し位置です。
type source interface {
	next() (int, bool)
	stop()
}

// pullSource は iter.Pull で列を読みます。入力毎に goroutine を一つ使います。
type pullSource struct {
	pull func() (int, bool)
	halt func()
}

func (p *pullSource) next() (int, bool) { return p.pull() }
func (p *pullSource) stop()             { p.halt() }

// sliceSource はスライスを添字で読みます。goroutine は使いません。
type sliceSource struct {
	values []int
	pos    int
}

func (s *sliceSource) next() (int, bool) {
	if s.pos >= len(s.values) {
		return 0, false
	}
	v := s.values[s.pos]
	s.pos++
	return v, true
}

func (s *sliceSource) stop() {}

type cursor struct {
	value int
	src   source
}

// Merge はソート済みの列を遅延的に一本の昇順列へマージします。
//
// 各入力は先頭から一度だけ読まれます。同じ値が並んだ場合は入力の添字が小さい方を先に出します。
// 利用側が途中で止めた場合も、取り出し中の入力はすべて停止されます。
// 入力がスライスの場合は MergeSlices を使ってください。
func Merge(seqs ...iter.Seq[int]) iter.Seq[int] {
	return func(yield func(int) bool) {
		sources := make([]source, len(seqs))
		for i, seq := range seqs {
			next, stop := iter.Pull(seq)
			sources[i] = &pullSource{pull: next, halt: stop}
		}
		merge(sources, yield)
	}
}

// MergeSlices はスライス版の Merge です。入力の数に関わらず goroutine を起動しません。
func MergeSlices(parts ...[]int) iter.Seq[int] {
	return func(yield func(int) bool) {
		sources := make([]source, len(parts))
		for i, p := range parts {
			sources[i] = &sliceSource{values: p}
		}
		merge(sources, yield)
	}
}

func merge(sources []source, yield func(int) bool) {
	cursors := make([]cursor, 0, len(sources))
	defer func() {
		for _, c := range cursors {
			c.src.stop()
		}
	}()

	for _, src := range sources {
		v, ok := src.next()
		if !ok {
			src.stop()
			continue
		}
		cursors = append(cursors, cursor{value: v, src: src})
	}

	for len(cursors) > 0 {
		lowest := 0
		for i := 1; i < len(cursors); i++ {
			// 厳密な比較で同値時は先の入力が残る
			if cursors[i].value < cursors[lowest].value {
				lowest = i
			}
		}

		v := cursors[lowest].value
		if n, ok := cursors[lowest].src.next(); ok {
			cursors[lowest].value = n
		} else {
			cursors[lowest].src.stop()
			cursors = slices.Delete(cursors, lowest, lowest+1)
		}

		if !yield(v) {
			return
		}
	}
}
