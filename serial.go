package sled

import "sync"

// serializer is the single owner of a store's sessions when
// Config.Serialize is set: every session runs on its goroutine, one
// at a time, in the order requests arrive.
type serializer struct {
	reqs      chan request
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type request struct {
	fn     func() error
	result chan result
}

type result struct {
	err      error
	panicked bool
	panicVal interface{}
}

func newSerializer() *serializer {
	z := &serializer{
		reqs: make(chan request),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go z.run()
	return z
}

func (z *serializer) run() {
	defer close(z.done)
	for {
		select {
		case req := <-z.reqs:
			req.result <- call(req.fn)
		case <-z.quit:
			return
		}
	}
}

// call runs fn, capturing a panic so that it can be re-raised on the
// caller's goroutine instead of killing the owner.
func call(fn func() error) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{panicked: true, panicVal: r}
		}
	}()
	return result{err: fn()}
}

// do runs fn on the owner goroutine and waits for it.  After close it
// returns ErrClosed without running fn.
func (z *serializer) do(fn func() error) error {
	req := request{fn: fn, result: make(chan result, 1)}
	select {
	case z.reqs <- req:
	case <-z.quit:
		return ErrClosed
	}
	res := <-req.result
	if res.panicked {
		panic(res.panicVal)
	}
	return res.err
}

// close stops the owner after the request it is running, if any.
func (z *serializer) close() {
	z.closeOnce.Do(func() {
		close(z.quit)
	})
	<-z.done
}
