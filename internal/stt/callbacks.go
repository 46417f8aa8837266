package stt

import "sync"

// callbacks holds the handlers registered on a recognition. Backends embed it.
type callbacks struct {
	mu       sync.Mutex
	onResult func(ResultEvent)
	onError  func(string)
	onEnd    func()
}

func (c *callbacks) OnResult(fn func(ResultEvent)) {
	c.mu.Lock()
	c.onResult = fn
	c.mu.Unlock()
}

func (c *callbacks) OnError(fn func(code string)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

func (c *callbacks) OnEnd(fn func()) {
	c.mu.Lock()
	c.onEnd = fn
	c.mu.Unlock()
}

func (c *callbacks) emitResult(evt ResultEvent) {
	c.mu.Lock()
	fn := c.onResult
	c.mu.Unlock()
	if fn != nil {
		fn(evt)
	}
}

func (c *callbacks) emitError(code string) {
	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(code)
	}
}

func (c *callbacks) emitEnd() {
	c.mu.Lock()
	fn := c.onEnd
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
