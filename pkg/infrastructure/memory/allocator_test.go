package memory

import (
	"sync"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackedAllocator(t *testing.T) {
	t.Run("AllocateAndFree", func(t *testing.T) {
		allocator := NewTrackedAllocator(memory.NewGoAllocator())
		assert.Equal(t, int64(0), allocator.BytesUsed())

		buf1 := allocator.Allocate(1024)
		buf2 := allocator.Allocate(1024)
		require.Len(t, buf1, 1024)
		assert.Equal(t, int64(2048), allocator.BytesUsed())

		allocator.Free(buf1)
		assert.Equal(t, int64(1024), allocator.BytesUsed())
		allocator.Free(buf2)
		assert.Equal(t, int64(0), allocator.BytesUsed())
		assert.Equal(t, int64(2048), allocator.PeakBytes())
	})

	t.Run("Reallocate", func(t *testing.T) {
		allocator := NewTrackedAllocator(nil)

		buf := allocator.Allocate(512)
		buf = allocator.Reallocate(1024, buf)
		require.Len(t, buf, 1024)
		assert.Equal(t, int64(1024), allocator.BytesUsed())

		buf = allocator.Reallocate(256, buf)
		require.Len(t, buf, 256)
		assert.Equal(t, int64(256), allocator.BytesUsed())
		assert.Equal(t, int64(1024), allocator.PeakBytes())
	})

	t.Run("ArrowArrays", func(t *testing.T) {
		allocator := NewTrackedAllocator(nil)

		b := array.NewInt64Builder(allocator)
		b.AppendValues([]int64{1, 2, 3}, nil)
		arr := b.NewArray()
		b.Release()
		assert.Greater(t, allocator.BytesUsed(), int64(0))

		arr.Release()
		assert.Equal(t, int64(0), allocator.BytesUsed())
	})

	t.Run("ConcurrentAllocation", func(t *testing.T) {
		allocator := NewTrackedAllocator(nil)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				buf := allocator.Allocate(1024)
				allocator.Free(buf)
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(0), allocator.BytesUsed())
		assert.GreaterOrEqual(t, allocator.PeakBytes(), int64(1024))
	})
}
