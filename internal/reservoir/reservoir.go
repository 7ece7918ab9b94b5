// Package reservoir — равномерная случайная выборка фиксированного размера из
// неограниченного потока (алгоритм R).
package reservoir

import (
	"fmt"
	"math/rand/v2"
)

// DefaultSeed — сид источника случайности по умолчанию (воспроизводимость в тестах)
const DefaultSeed = 42

// Rand — источник случайных чисел; *rand.Rand из math/rand/v2 подходит напрямую.
type Rand interface {
	// IntN возвращает равномерное целое в [0, n)
	IntN(n int) int
}

// NewRand создаёт детерминированный PCG-источник по сиду.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Sampler — резервуар ёмкостью capacity. После n предложений каждый элемент
// находится в выборке с вероятностью capacity/n, независимо от его возраста.
// Не потокобезопасен: синхронизация — забота владельца.
type Sampler[T any] struct {
	items    []T
	capacity int
	offered  int // сколько всего элементов предложено
	rng      Rand
}

// New создаёт Sampler. capacity == 0 допустим: элементы считаются, но не хранятся.
// rng == nil — PCG с DefaultSeed.
func New[T any](capacity int, rng Rand) *Sampler[T] {
	if capacity < 0 {
		panic(fmt.Sprintf("reservoir capacity must be non-negative, got %d", capacity))
	}
	if rng == nil {
		rng = NewRand(DefaultSeed)
	}
	return &Sampler[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
		rng:      rng,
	}
}

// Offer предлагает элемент. Пока выборка не заполнена, элемент добавляется.
// Иначе j берётся из [0, n) (n уже с учётом этого элемента); при j < capacity
// элемент заменяет items[j], и вытесненный возвращается с ok == true.
func (s *Sampler[T]) Offer(item T) (evicted T, ok bool) {
	s.offered++
	if len(s.items) < s.capacity {
		s.items = append(s.items, item)
		return evicted, false
	}
	j := s.rng.IntN(s.offered)
	if j >= s.capacity {
		return evicted, false
	}
	evicted = s.items[j]
	s.items[j] = item
	return evicted, true
}

// Full сообщает, что выборка заполнена: следующий Offer либо заменит
// элемент, либо будет отброшен.
func (s *Sampler[T]) Full() bool {
	return len(s.items) >= s.capacity
}

// Count — сколько элементов предложено за всё время (n).
func (s *Sampler[T]) Count() int {
	return s.offered
}

// Len — сколько элементов сейчас в выборке: min(n, capacity).
func (s *Sampler[T]) Len() int {
	return len(s.items)
}

// Capacity — ёмкость резервуара.
func (s *Sampler[T]) Capacity() int {
	return s.capacity
}

// Samples — элементы выборки без определённого порядка. Срез только для чтения.
func (s *Sampler[T]) Samples() []T {
	return s.items
}

// Clear сбрасывает счётчик и очищает выборку; источник случайности сохраняется.
func (s *Sampler[T]) Clear() {
	clear(s.items)
	s.items = s.items[:0]
	s.offered = 0
}
