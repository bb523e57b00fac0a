package callstack

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// CallableFn callback signature
type CallableFn func() error

// CallStack is a lifo list of callbacks, typically used for shutdown handlers
type CallStack struct {
	calling  int32
	handlers []CallableFn
	sync.Mutex
}

// NewCallStack creates an empty CallStack
func NewCallStack() *CallStack {
	return &CallStack{
		calling:  0,
		handlers: make([]CallableFn, 0),
	}
}

// Add a callback
func (c *CallStack) Add(fn CallableFn) {
	c.Lock()
	defer c.Unlock()
	c.handlers = append(c.handlers, fn)
}

// Run all callbacks in reverse order
func (c *CallStack) Run(abortOnError bool) error {
	c.Lock()
	atomic.StoreInt32(&c.calling, 1)
	defer func() { atomic.StoreInt32(&c.calling, 0) }()
	defer c.Unlock()
	if len(c.handlers) == 0 {
		return nil
	}
	for i := len(c.handlers) - 1; i >= 0; i-- {
		if err := c.handlers[i](); err != nil && abortOnError {
			return err
		}
	}
	return nil
}

// RunLinear runs all callbacks in sequential order
func (c *CallStack) RunLinear(abortOnError bool) error {
	c.Lock()
	atomic.StoreInt32(&c.calling, 1)
	defer func() { atomic.StoreInt32(&c.calling, 0) }()
	defer c.Unlock()
	for _, fn := range c.handlers {
		if err := fn(); err != nil && abortOnError {
			return err
		}
	}
	return nil
}

// IsCalling returns true if in call loop
func (c *CallStack) IsCalling() bool {
	return atomic.LoadInt32(&c.calling) == 1
}

// Get returns the current call stack as a list of "file:line fn" strings,
// skipping the given number of frames plus this function itself
func Get(skip int) []string {
	pc := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pc)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pc[:n])
	result := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		result = append(result, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		if !more {
			break
		}
	}
	return result
}
