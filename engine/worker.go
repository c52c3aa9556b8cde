package engine

import (
	"context"
	"os"
	"path"
	"path/filepath"

	pool "github.com/jolestar/go-commons-pool/v2"
	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/operation"
)

// worker owns one wazero runtime with the Ghostscript module compiled
// into it. Workers are borrowed exclusively, so a runtime never hosts
// two instantiations at once.
type worker struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
}

// run executes the module once: input bytes go into a scratch directory
// mounted at /work, the fixed argument vector runs, and the operation's
// output file is read back.
func (w *worker) run(ctx context.Context, req RunRequest) ([]byte, error) {
	workDir, err := os.MkdirTemp("", "gsworker-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create work directory")
	}
	defer os.RemoveAll(workDir)

	if err := os.WriteFile(filepath.Join(workDir, inputFile), req.Input, 0o600); err != nil {
		return nil, errors.Wrap(err, "failed to stage input")
	}

	outputFile := req.Operation.ModuleOutputFile()
	argv := buildArgv(req.Operation, req.ArgOptions)

	modCfg := wazero.NewModuleConfig().
		WithArgs(argv...).
		WithFSConfig(wazero.NewFSConfig().WithDirMount(workDir, workMount)).
		WithName("")

	if req.Tracker != nil {
		lw := req.Tracker.Writer()
		defer lw.Flush()
		modCfg = modCfg.WithStdout(lw).WithStderr(lw)
	}

	mod, err := w.runtime.InstantiateModule(ctx, w.compiled, modCfg)
	if mod != nil {
		defer mod.Close(ctx)
	}
	if err != nil {
		exitErr, ok := err.(*sys.ExitError)
		if !ok || exitErr.ExitCode() != 0 {
			return nil, errors.Wrap(err, "ghostscript run failed")
		}
		// Exit code 0 via proc_exit is a normal termination.
	}

	output, err := os.ReadFile(filepath.Join(workDir, outputFile))
	if err != nil {
		return nil, errors.Wrap(err, "ghostscript produced no output")
	}

	return output, nil
}

// buildArgv assembles the full argument vector, argv[0] included, with
// paths as seen from inside the module filesystem.
func buildArgv(op operation.Operation, opts operation.ArgOptions) []string {
	input := path.Join(workMount, inputFile)
	output := path.Join(workMount, op.ModuleOutputFile())
	return append([]string{"gs"}, op.Args(input, output, opts)...)
}

// workerFactory builds pooled workers from the compiled module bytes.
type workerFactory struct {
	wasm []byte
}

var _ pool.PooledObjectFactory = (*workerFactory)(nil)

func (f *workerFactory) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	runtime := wazero.NewRuntimeWithConfig(ctx,
		wazero.NewRuntimeConfig().WithCloseOnContextDone(true))

	wasi_snapshot_preview1.MustInstantiate(ctx, runtime)

	compiled, err := runtime.CompileModule(ctx, f.wasm)
	if err != nil {
		runtime.Close(ctx)
		return nil, errors.Wrap(err, "failed to compile ghostscript module")
	}

	return pool.NewPooledObject(&worker{
		runtime:  runtime,
		compiled: compiled,
	}), nil
}

func (f *workerFactory) DestroyObject(ctx context.Context, object *pool.PooledObject) error {
	w := object.Object.(*worker)
	return w.runtime.Close(ctx)
}

func (f *workerFactory) ValidateObject(ctx context.Context, object *pool.PooledObject) bool {
	return true
}

func (f *workerFactory) ActivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}

func (f *workerFactory) PassivateObject(ctx context.Context, object *pool.PooledObject) error {
	return nil
}
