package utils

import (
	"github.com/emirpasic/gods/sets"
	"github.com/emirpasic/gods/sets/hashset"
)

func List2set[T any](list []T) sets.Set {
	set := hashset.New()
	for _, value := range list {
		set.Add(value)
	}
	return set
}

// SetValues 按类型取出set中的元素，类型不匹配的元素会被忽略
func SetValues[T any](set sets.Set) []T {
	answer := make([]T, 0, set.Size())
	for _, value := range set.Values() {
		if v, ok := value.(T); ok {
			answer = append(answer, v)
		}
	}
	return answer
}
