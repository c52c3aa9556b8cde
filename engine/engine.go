// Package engine runs a pre-compiled Ghostscript WebAssembly binary.
// All PDF manipulation is owned by Ghostscript; the engine only moves
// bytes in and out of the module filesystem and feeds its log output
// to a progress tracker.
package engine

import (
	"context"
	"os"
	"time"

	pool "github.com/jolestar/go-commons-pool/v2"
	"github.com/pkg/errors"

	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/logger"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/operation"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/progress"
)

const (
	// workMount is where the per-run scratch directory appears inside
	// the module filesystem.
	workMount = "/work"
	// inputFile is the fixed input path, relative to the mount.
	inputFile = "input.pdf"
)

// Config controls the engine's worker pool and run limits.
type Config struct {
	// WasmPath is the path to the Ghostscript WASI binary.
	WasmPath string
	// MinIdle workers kept warm in the pool.
	MinIdle int
	// MaxIdle workers retained after use.
	MaxIdle int
	// MaxTotal workers allowed concurrently.
	MaxTotal int
	// RunTimeout bounds a single Ghostscript run (0 means no limit).
	RunTimeout time.Duration
}

func (c Config) maxTotal() int {
	if c.MaxTotal <= 0 {
		return 1
	}
	return c.MaxTotal
}

func (c Config) maxIdle() int {
	if c.MaxIdle <= 0 {
		return 1
	}
	return c.MaxIdle
}

// RunRequest describes a single Ghostscript invocation.
type RunRequest struct {
	Operation operation.Operation
	// InputName is the original filename, used only for logging.
	InputName string
	// Input is the raw PDF to process.
	Input []byte
	// ArgOptions tune the argument vector for this run.
	ArgOptions operation.ArgOptions
	// Tracker receives the module's status output. Optional.
	Tracker *progress.Tracker
}

// RunResult holds the artifact read back from the module filesystem.
type RunResult struct {
	Output   []byte
	Duration time.Duration
}

// Engine runs Ghostscript operations against a pool of WASM workers.
type Engine struct {
	cfg    Config
	pool   *pool.ObjectPool
	logger logger.Logger
}

// WithLogger returns the engine with the given logger.
func (e *Engine) WithLogger(l logger.Logger) *Engine {
	e.logger = l
	return e
}

// New loads the Ghostscript module and starts the worker pool.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	wasm, err := os.ReadFile(cfg.WasmPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load ghostscript module")
	}

	factory := &workerFactory{wasm: wasm}

	poolCfg := pool.NewDefaultPoolConfig()
	poolCfg.MaxTotal = cfg.maxTotal()
	poolCfg.MaxIdle = cfg.maxIdle()
	poolCfg.MinIdle = cfg.MinIdle

	p := pool.NewObjectPool(ctx, factory, poolCfg)

	e := &Engine{cfg: cfg, pool: p, logger: logger.Noop()}

	if cfg.MinIdle > 0 {
		p.PreparePool(ctx)
	}

	return e, nil
}

// Run executes one operation and returns the artifact bytes.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if _, err := operation.Parse(string(req.Operation)); err != nil {
		return nil, err
	}

	if e.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RunTimeout)
		defer cancel()
	}

	obj, err := e.pool.BorrowObject(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire worker")
	}
	w := obj.(*worker)

	start := time.Now()
	output, err := w.run(ctx, req)
	if err != nil {
		// A failed run may leave the runtime in an unknown state;
		// replace the worker instead of returning it.
		_ = e.pool.InvalidateObject(ctx, obj)
		return nil, err
	}

	e.release(ctx, obj)

	return &RunResult{
		Output:   output,
		Duration: time.Since(start),
	}, nil
}

// release hands the worker back to the pool. A return failure loses
// the worker, not the artifact the caller is waiting on.
func (e *Engine) release(ctx context.Context, obj interface{}) {
	if err := e.pool.ReturnObject(ctx, obj); err != nil {
		e.logger.Warn("failed to return worker to pool", "error", err)
	}
}

// Close shuts down the worker pool.
func (e *Engine) Close(ctx context.Context) {
	e.pool.Close(ctx)
}
