package rampart

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rampart-go/rampart/types/callstack"
)

type stubProvider struct {
	stopped bool
}

func (s *stubProvider) ShutdownWithContext(ctx context.Context) error {
	s.stopped = true
	return nil
}

func TestShutdown(t *testing.T) {
	originalDestructors := appDestructors
	defer func() {
		appDestructors = originalDestructors
	}()

	t.Run("destructors run in reverse order", func(t *testing.T) {
		appDestructors = callstack.NewCallStack()

		order := []int{}
		RegisterDestructor(func() error {
			order = append(order, 1)
			return nil
		})
		RegisterDestructor(func() error {
			order = append(order, 2)
			return nil
		})
		RegisterDestructor(func() error {
			order = append(order, 3)
			return nil
		})

		Shutdown(nil)
		assert.Equal(t, []int{3, 2, 1}, order)
	})

	t.Run("providers are torn down", func(t *testing.T) {
		appDestructors = callstack.NewCallStack()

		p := &stubProvider{}
		RegisterProvider(context.Background(), p)

		Shutdown(nil)
		assert.True(t, p.stopped)
	})

	t.Run("concurrent shutdown runs destructors once", func(t *testing.T) {
		appDestructors = callstack.NewCallStack()

		var mu sync.Mutex
		counter := 0
		RegisterDestructor(func() error {
			mu.Lock()
			defer mu.Unlock()
			counter++
			return nil
		})

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				Shutdown(nil)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, counter)
	})

	t.Run("shutdown after shutdown is a no-op", func(t *testing.T) {
		appDestructors = nil
		assert.NotPanics(t, func() {
			Shutdown(nil)
		})
		assert.NotPanics(t, func() {
			RegisterDestructor(func() error { return nil })
		})
	})
}
