package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingCapacityInvariant(t *testing.T) {
	r := newRing(3)
	for i, push := range []float64{1, 2, 3, 4, 5} {
		r.push(push, push*10)
		want := i + 1
		if want > 3 {
			want = 3
		}
		assert.Equal(t, want, r.len())
	}
	assert.Equal(t, []Point{{3, 30}, {4, 40}, {5, 50}}, r.window(10))
}

func TestRingWindowPartial(t *testing.T) {
	r := newRing(5)
	r.push(1, 10)
	r.push(2, 20)
	assert.Equal(t, []Point{{1, 10}, {2, 20}}, r.window(10))
}

func TestAppendLogUnbounded(t *testing.T) {
	a := &appendLog{}
	for i := 0; i < 1000; i++ {
		a.push(float64(i), float64(i)*2)
	}
	assert.Equal(t, 1000, a.len())
	last, ok := a.tail()
	assert.True(t, ok)
	assert.Equal(t, Point{999, 1998}, last)
}
