package reservoir

import (
	"math"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		capacity  int
		wantPanic bool
	}{
		{"positive capacity", 10, false},
		{"zero capacity", 0, false},
		{"negative capacity", -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if (r != nil) != tt.wantPanic {
					t.Errorf("New(%d) panic = %v, wantPanic %v", tt.capacity, r, tt.wantPanic)
				}
			}()
			s := New[int](tt.capacity, nil)
			if s.Capacity() != tt.capacity {
				t.Errorf("Capacity() = %d, want %d", s.Capacity(), tt.capacity)
			}
			if s.Len() != 0 || s.Count() != 0 {
				t.Errorf("новый Sampler не пуст: Len=%d Count=%d", s.Len(), s.Count())
			}
		})
	}
}

func TestSampler_SizeInvariant(t *testing.T) {
	for _, capacity := range []int{0, 1, 5, 50} {
		s := New[int](capacity, NewRand(7))
		for k := 1; k <= 200; k++ {
			s.Offer(k)
			want := min(k, capacity)
			if s.Len() != want {
				t.Fatalf("capacity=%d после %d предложений Len()=%d, want %d", capacity, k, s.Len(), want)
			}
			if s.Count() != k {
				t.Fatalf("capacity=%d Count()=%d, want %d", capacity, s.Count(), k)
			}
		}
	}
}

func TestSampler_OfferBelowCapacity(t *testing.T) {
	s := New[string](3, nil)
	for _, v := range []string{"a", "b", "c"} {
		if _, ok := s.Offer(v); ok {
			t.Errorf("Offer(%q) вытеснил элемент при незаполненной выборке", v)
		}
	}
	if !s.Full() {
		t.Error("после 3 предложений выборка должна быть заполнена")
	}
	got := map[string]bool{}
	for _, v := range s.Samples() {
		got[v] = true
	}
	if len(got) != 3 || !got["a"] || !got["b"] || !got["c"] {
		t.Errorf("Samples() = %v, want a b c", s.Samples())
	}
}

// fixedRand возвращает заранее заданные значения IntN.
type fixedRand struct {
	vals []int
	args []int
}

func (f *fixedRand) IntN(n int) int {
	f.args = append(f.args, n)
	v := f.vals[0]
	f.vals = f.vals[1:]
	return v
}

func TestSampler_OfferReplacesAndReturnsEvicted(t *testing.T) {
	rng := &fixedRand{vals: []int{1, 4}}
	s := New[int](2, rng)
	s.Offer(10)
	s.Offer(20)

	evicted, ok := s.Offer(30) // j=1 < capacity
	if !ok || evicted != 20 {
		t.Errorf("Offer(30) = (%d, %v), want (20, true)", evicted, ok)
	}
	evicted, ok = s.Offer(40) // j=4 >= capacity — отброшен
	if ok {
		t.Errorf("Offer(40) вытеснил %d, ожидали отбрасывание", evicted)
	}
	if s.Samples()[0] != 10 || s.Samples()[1] != 30 {
		t.Errorf("Samples() = %v, want [10 30]", s.Samples())
	}
	// n берётся после инкремента
	if len(rng.args) != 2 || rng.args[0] != 3 || rng.args[1] != 4 {
		t.Errorf("IntN вызван с %v, want [3 4]", rng.args)
	}
}

func TestSampler_ZeroCapacity(t *testing.T) {
	s := New[int](0, nil)
	for i := 0; i < 10; i++ {
		if _, ok := s.Offer(i); ok {
			t.Fatal("Offer при нулевой ёмкости не должен ничего вытеснять")
		}
	}
	if s.Len() != 0 || s.Count() != 10 {
		t.Errorf("Len=%d Count=%d, want 0 and 10", s.Len(), s.Count())
	}
}

func TestSampler_Clear(t *testing.T) {
	s := New[int](4, nil)
	for i := 0; i < 20; i++ {
		s.Offer(i)
	}
	s.Clear()
	if s.Len() != 0 || s.Count() != 0 {
		t.Errorf("после Clear Len=%d Count=%d, want 0 0", s.Len(), s.Count())
	}
	for i := 0; i < 3; i++ {
		if _, ok := s.Offer(i); ok {
			t.Error("после Clear выборка должна заполняться заново без вытеснений")
		}
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

func TestSampler_Deterministic(t *testing.T) {
	run := func() []int {
		s := New[int](5, NewRand(123))
		for i := 0; i < 100; i++ {
			s.Offer(i)
		}
		return append([]int(nil), s.Samples()...)
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("одинаковый сид дал разные выборки: %v vs %v", a, b)
		}
	}
}

func TestSampler_Uniformity(t *testing.T) {
	const (
		capacity = 5
		n        = 20
		trials   = 20000
	)
	hits := make([]int, n)
	for trial := 0; trial < trials; trial++ {
		s := New[int](capacity, NewRand(uint64(trial)))
		for i := 0; i < n; i++ {
			s.Offer(i)
		}
		for _, v := range s.Samples() {
			hits[v]++
		}
	}
	want := float64(capacity) / n
	for i, h := range hits {
		got := float64(h) / trials
		if math.Abs(got-want) > 0.02 {
			t.Errorf("элемент %d: частота включения %.4f, want %.4f ± 0.02", i, got, want)
		}
	}
}
