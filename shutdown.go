package rampart

import (
	"context"
	"sync"

	"github.com/rampart-go/rampart/log"
	"github.com/rampart-go/rampart/types/callstack"
)

// Shutdownable is implemented by providers with background goroutines
// (rate limiter, session manager)
type Shutdownable interface {
	ShutdownWithContext(ctx context.Context) error
}

var appDestructors = callstack.NewCallStack()
var shutdownMx sync.Mutex

// RegisterDestructor registers a function to run during application shutdown
// Destructors run in reverse registration order
func RegisterDestructor(fn callstack.CallableFn) {
	shutdownMx.Lock()
	defer shutdownMx.Unlock()
	if appDestructors != nil {
		appDestructors.Add(fn)
	}
}

// RegisterProvider registers a provider's teardown as a destructor, bounded
// by the given context
func RegisterProvider(ctx context.Context, p Shutdownable) {
	RegisterDestructor(func() error {
		return p.ShutdownWithContext(ctx)
	})
}

// Shutdown runs all registered destructors exactly once
func Shutdown(arg error) {
	shutdownMx.Lock()
	defer shutdownMx.Unlock()

	if appDestructors == nil {
		return
	}
	logger := log.New("shutdown")
	if arg != nil {
		logger.Fatal(arg, "fatal error")
	}
	if err := appDestructors.Run(false); err != nil {
		logger.Fatal(err, "fatal error while shutting down")
	}
	appDestructors = nil
}
