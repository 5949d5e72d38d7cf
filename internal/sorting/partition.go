package sorting

import "math/rand/v2"

// PartitionSort は numbers をその場で昇順に並べ替えて返します。
// ランダムなピボットと三分割（未満・等しい・超過）を使います。安定ではありません。
func PartitionSort(numbers []int) []int {
	partitionSort(numbers)
	return numbers
}

func partitionSort(a []int) {
	for len(a) > 1 {
		lt, gt := partition(a, a[rand.IntN(len(a))])
		// 小さい側を再帰、大きい側はループで処理する
		if lt < len(a)-gt {
			partitionSort(a[:lt])
			a = a[gt:]
		} else {
			partitionSort(a[gt:])
			a = a[:lt]
		}
	}
}

// partition は a を [< pivot | == pivot | > pivot] に並べ替え、a[lt:gt] が pivot と等しくなる境界を返します。
func partition(a []int, pivot int) (lt, gt int) {
	lt, i, gt := 0, 0, len(a)
	for i < gt {
		switch {
		case a[i] < pivot:
			a[lt], a[i] = a[i], a[lt]
			lt++
			i++
		case a[i] > pivot:
			gt--
			a[i], a[gt] = a[gt], a[i]
		default:
			i++
		}
	}
	return lt, gt
}
