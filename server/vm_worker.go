package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/tribit/pkg/bytecode"
	"github.com/chazu/tribit/pkg/dist"
	"github.com/chazu/tribit/pkg/synth"
)

// Engine owns the machine-facing state of the server. It is only touched
// from the worker goroutine.
type Engine struct {
	synth     *synth.Synthesizer
	stepLimit int
	seeds     map[dist.Hash]synth.Result
	log       commonlog.Logger
}

// NewEngine creates an Engine running programs under stepLimit and
// searching with synthesizer s.
func NewEngine(s *synth.Synthesizer, stepLimit int) *Engine {
	return &Engine{
		synth:     s,
		stepLimit: stepLimit,
		seeds:     make(map[dist.Hash]synth.Result),
		log:       commonlog.GetLogger("tribit.lsp"),
	}
}

// Run executes p from regs.
func (e *Engine) Run(p *bytecode.Program, regs bytecode.Registers) ([]uint8, error) {
	return bytecode.RunWithLimit(p, regs, e.stepLimit)
}

// Solve returns the minimal seed for p, reusing earlier answers for the
// same stream.
func (e *Engine) Solve(p *bytecode.Program) synth.Result {
	h := dist.ProgramHash(p)
	if res, ok := e.seeds[h]; ok {
		return res
	}
	res := e.synth.FindMinimalSeed(p)
	e.seeds[h] = res
	e.log.Debugf("cached seed search for %s", h)
	return res
}

// ErrWorkerStopped is returned by Do once Stop has been called.
var ErrWorkerStopped = errors.New("worker stopped")

// engineRequest represents a unit of work to be executed on the worker goroutine.
type engineRequest struct {
	fn   func(*Engine) interface{}
	done chan engineResult
}

// engineResult holds the return value from an Engine operation.
type engineResult struct {
	value interface{}
	err   error
}

// Worker serializes all machine work through a single goroutine, so the
// server never runs two machines at once however many requests arrive.
type Worker struct {
	engine   *Engine
	requests chan engineRequest
	quit     chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(e *Engine) *Worker {
	w := &Worker{
		engine:   e,
		requests: make(chan engineRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			result := w.execute(req.fn)
			req.done <- result
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the Engine, recovering from panics.
func (w *Worker) execute(fn func(*Engine) interface{}) engineResult {
	var result engineResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn(w.engine)
	}()
	return result
}

// Do submits a function for execution on the worker goroutine and blocks
// until it completes. Returns the result and any error (including panics),
// or ErrWorkerStopped if the worker is shut down first.
func (w *Worker) Do(fn func(*Engine) interface{}) (interface{}, error) {
	req := engineRequest{
		fn:   fn,
		done: make(chan engineResult, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Stop shuts down the worker goroutine. Calling it more than once is safe.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
