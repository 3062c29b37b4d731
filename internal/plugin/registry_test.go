package plugin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
)

func newRegistry(t *testing.T, opts ...RegistryOption) *Registry {
	t.Helper()
	r, err := NewRegistry("1.5.0", opts...)
	require.NoError(t, err)
	return r
}

func TestNewRegistry_InvalidHostVersion(t *testing.T) {
	_, err := NewRegistry("banana")
	require.Error(t, err)
}

func TestLoadAll_InitializesInDependencyOrder(t *testing.T) {
	log := &callLog{}
	app := newTestPlugin(log, "app", "lib")
	app.cmds = []Command{echoCommand("serve")}
	lib := newTestPlugin(log, "lib")
	lib.cmds = []Command{echoCommand("compile")}

	r := newRegistry(t)
	report, err := r.LoadAll(context.Background(), []Factory{factoryOf(app), factoryOf(lib)})
	require.NoError(t, err)

	assert.Empty(t, report.Failures)
	assert.Equal(t, []string{"lib", "app"}, report.Loaded)
	assert.Equal(t, []string{"init:lib", "init:app"}, log.all())

	state, ok := r.State("app")
	require.True(t, ok)
	assert.Equal(t, StateReady, state)

	names := make([]string, 0)
	for _, c := range r.Commands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"compile", "serve"}, names)
}

func TestLoadAll_TwiceIsAnError(t *testing.T) {
	r := newRegistry(t)
	_, err := r.LoadAll(context.Background(), nil)
	require.NoError(t, err)
	_, err = r.LoadAll(context.Background(), nil)
	assert.Error(t, err)
}

func TestLoadAll_SameOrderAcrossRegistries(t *testing.T) {
	build := func() []Factory {
		return []Factory{
			factoryOf(newTestPlugin(nil, "c")),
			factoryOf(newTestPlugin(nil, "a", "c")),
			factoryOf(newTestPlugin(nil, "b")),
			factoryOf(newTestPlugin(nil, "d", "b", "a")),
		}
	}
	var first []string
	for i := range 5 {
		r := newRegistry(t)
		report, err := r.LoadAll(context.Background(), build())
		require.NoError(t, err)
		if i == 0 {
			first = report.Loaded
			continue
		}
		assert.Equal(t, first, report.Loaded)
	}
	assert.Equal(t, []string{"c", "a", "b", "d"}, first)
}

func TestLoadAll_MetadataFailures(t *testing.T) {
	tooNew := newTestPlugin(nil, "future")
	tooNew.Meta.MinCLIVersion = "2.0.0"
	noName := newTestPlugin(nil, "anonymous")
	noName.Meta.Name = ""

	r := newRegistry(t)
	report, err := r.LoadAll(context.Background(), []Factory{
		factoryOf(tooNew),
		factoryOf(noName),
		factoryOf(newTestPlugin(nil, "twin")),
		factoryOf(newTestPlugin(nil, "twin")),
		func() Plugin { return nil },
		func() Plugin { panic("factory exploded") },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"twin"}, report.Loaded)
	kinds := make([]ferrors.ErrorKind, 0, len(report.Failures))
	for _, f := range report.Failures {
		kinds = append(kinds, f.Kind)
	}
	assert.Equal(t, []ferrors.ErrorKind{
		ferrors.KindIncompatibleHost,
		ferrors.KindInvalidMetadata,
		ferrors.KindDuplicateID,
		ferrors.KindInvalidMetadata,
		ferrors.KindInvalidMetadata,
	}, kinds)

	state, _ := r.State("future")
	assert.Equal(t, StateFailed, state)
	assert.Len(t, r.Plugins(), 6)
}

func TestLoadAll_IncompatibleHostAcceptedOnNewerHost(t *testing.T) {
	p := newTestPlugin(nil, "future")
	p.Meta.MinCLIVersion = "2.0.0"

	r, err := NewRegistry("2.0.1")
	require.NoError(t, err)
	report, err := r.LoadAll(context.Background(), []Factory{factoryOf(p)})
	require.NoError(t, err)
	assert.Equal(t, []string{"future"}, report.Loaded)
}

func TestLoadAll_FailedDependencyPropagates(t *testing.T) {
	log := &callLog{}
	a := newTestPlugin(log, "A")
	a.initErr = errors.New("database unreachable")
	a.cmds = []Command{echoCommand("a-cmd")}
	b := newTestPlugin(log, "B", "A")
	b.cmds = []Command{echoCommand("b-cmd")}

	r := newRegistry(t)
	report, err := r.LoadAll(context.Background(), []Factory{factoryOf(a), factoryOf(b)})
	require.NoError(t, err)

	assert.Empty(t, report.Loaded)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, ferrors.KindInitializationFailed, report.Failed("A")[0].Kind)
	assert.Contains(t, report.Failed("A")[0].Reason, "database unreachable")
	assert.Equal(t, ferrors.KindDependencyFailed, report.Failed("B")[0].Kind)

	assert.Equal(t, []string{"init:A"}, log.all(), "B must never be initialized")
	assert.Empty(t, r.Commands())

	res := r.Dispatch(context.Background(), "b-cmd", nil)
	assert.Equal(t, ferrors.KindUnknownCommand, res.Kind)
}

func TestLoadAll_InitializePanicIsContained(t *testing.T) {
	p := newTestPlugin(nil, "shaky")
	p.initPanic = true

	r := newRegistry(t)
	report, err := r.LoadAll(context.Background(), []Factory{factoryOf(p), factoryOf(newTestPlugin(nil, "steady"))})
	require.NoError(t, err)
	assert.Equal(t, []string{"steady"}, report.Loaded)
	assert.Equal(t, ferrors.KindInitializationFailed, report.Failed("shaky")[0].Kind)
}

func TestLoadAll_CycleDoesNotBlockIndependentPlugins(t *testing.T) {
	r := newRegistry(t)
	report, err := r.LoadAll(context.Background(), []Factory{
		factoryOf(newTestPlugin(nil, "A", "B")),
		factoryOf(newTestPlugin(nil, "B", "C")),
		factoryOf(newTestPlugin(nil, "C", "A")),
		factoryOf(newTestPlugin(nil, "D")),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"D"}, report.Loaded)
	for _, id := range []string{"A", "B", "C"} {
		assert.Equal(t, ferrors.KindCyclicDependency, report.Failed(id)[0].Kind)
	}
}

func TestLoadAll_ConfigValidation(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {"maxFiles": {"type": "integer", "minimum": 1}},
		"additionalProperties": false
	}`)

	tests := []struct {
		name   string
		config map[string]any
		accept func(map[string]any) bool
		ready  bool
	}{
		{"accepted", map[string]any{"maxFiles": 10}, nil, true},
		{"schema violation", map[string]any{"maxFiles": 0}, nil, false},
		{"unknown key", map[string]any{"other": true}, nil, false},
		{"hook rejects", map[string]any{"maxFiles": 5}, func(map[string]any) bool { return false }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &callLog{}
			p := &validatingPlugin{testPlugin: *newTestPlugin(log, "sim"), schema: schema, accept: tt.accept}
			factory := NewContextFactory(Providers{PluginConfig: map[string]map[string]any{"sim": tt.config}})

			r := newRegistry(t, WithContextFactory(factory))
			report, err := r.LoadAll(context.Background(), []Factory{factoryOf(p)})
			require.NoError(t, err)

			if tt.ready {
				assert.Equal(t, []string{"sim"}, report.Loaded)
				return
			}
			require.Len(t, report.Failures, 1)
			assert.Equal(t, ferrors.KindInvalidConfig, report.Failures[0].Kind)
			assert.Empty(t, log.all(), "Initialize must not run")
		})
	}
}

func TestRegisterCommands_Collision(t *testing.T) {
	first := newTestPlugin(nil, "first")
	first.cmds = []Command{{
		Name: "build",
		Handler: func(context.Context, Args, *Context) (Result, error) {
			return OK("first", nil), nil
		},
	}}
	second := newTestPlugin(nil, "second")
	second.cmds = []Command{
		{Name: "build", Handler: echoCommand("build").Handler},
		{Name: "deploy", Aliases: []string{"build-and-ship"}, Handler: echoCommand("deploy").Handler},
	}
	third := newTestPlugin(nil, "third")
	third.cmds = []Command{{Name: "ship", Aliases: []string{"deploy"}, Handler: echoCommand("ship").Handler}}

	r := newRegistry(t)
	report, err := r.LoadAll(context.Background(), []Factory{factoryOf(first), factoryOf(second), factoryOf(third)})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "third"}, report.Loaded, "collisions do not fail plugins")
	require.Len(t, report.Failures, 2)
	assert.Equal(t, Failure{Plugin: "second", Command: "build", Kind: ferrors.KindCommandCollision},
		Failure{Plugin: report.Failures[0].Plugin, Command: report.Failures[0].Command, Kind: report.Failures[0].Kind})
	assert.Equal(t, "third", report.Failures[1].Plugin)
	assert.Equal(t, ferrors.KindCommandCollision, report.Failures[1].Kind)

	res := r.Dispatch(context.Background(), "build", nil)
	require.True(t, res.Success)
	assert.Equal(t, "first", res.Message)

	// The colliding command is rejected as a whole, aliases included.
	assert.Equal(t, ferrors.KindUnknownCommand, r.Dispatch(context.Background(), "ship", nil).Kind)
	assert.True(t, r.Dispatch(context.Background(), "build-and-ship", nil).Success)

	// Registering again is a no-op.
	assert.Empty(t, r.RegisterCommands(context.Background()))
}

func TestRegisterCommands_MalformedCommand(t *testing.T) {
	p := newTestPlugin(nil, "sloppy")
	p.cmds = []Command{{Name: "nohandler"}, echoCommand("fine")}

	r := newRegistry(t)
	report, err := r.LoadAll(context.Background(), []Factory{factoryOf(p)})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, ferrors.KindInvalidMetadata, report.Failures[0].Kind)
	assert.Equal(t, "nohandler", report.Failures[0].Command)

	info, ok := r.Plugin("sloppy")
	require.True(t, ok)
	assert.Equal(t, StateReady, info.State)
	assert.Equal(t, []string{"fine"}, info.Commands)
}

func TestUnloadAll_ReverseOrderAndIsolatedFailures(t *testing.T) {
	log := &callLog{}
	a := newCleanable(log, "A")
	b := newCleanable(log, "B", "A")
	b.cleanupErr = errors.New("flush failed")
	c := newCleanable(log, "C", "B")
	obs := &recordingObserver{}

	r := newRegistry(t, WithObservers(obs))
	report, err := r.LoadAll(context.Background(), []Factory{factoryOf(a), factoryOf(b), factoryOf(c)})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, report.Loaded)

	unload := r.UnloadAll(context.Background())

	assert.Equal(t, []string{"init:A", "init:B", "init:C", "cleanup:C", "cleanup:B", "cleanup:A"}, log.all())
	assert.Equal(t, []string{"C", "B", "A"}, unload.Unloaded)
	require.Len(t, unload.Failures, 1)
	assert.Equal(t, "B", unload.Failures[0].Plugin)

	for _, id := range []string{"A", "B", "C"} {
		state, _ := r.State(id)
		assert.Equal(t, StateUnloaded, state)
	}
	assert.Equal(t,
		[]State{StateValidated, StateInitializing, StateReady, StateCleaning, StateUnloaded},
		obs.statesOf("B"))

	assert.Equal(t, ferrors.KindUnknownCommand, r.Dispatch(context.Background(), "anything", nil).Kind)
	assert.Empty(t, r.UnloadAll(context.Background()).Unloaded, "second unload is a no-op")
}

func TestUnloadAll_SkipsPluginsThatNeverInitialized(t *testing.T) {
	log := &callLog{}
	broken := newCleanable(log, "broken")
	broken.initErr = errors.New("nope")

	r := newRegistry(t)
	_, err := r.LoadAll(context.Background(), []Factory{factoryOf(broken), factoryOf(newCleanable(log, "fine"))})
	require.NoError(t, err)

	r.UnloadAll(context.Background())
	assert.Equal(t, []string{"init:broken", "init:fine", "cleanup:fine"}, log.all())
	state, _ := r.State("broken")
	assert.Equal(t, StateFailed, state)
}

func TestDispatch_Results(t *testing.T) {
	var called atomic.Int32
	p := newTestPlugin(nil, "gen")
	p.cmds = []Command{
		{
			Name:    "generate-code",
			Aliases: []string{"gen"},
			Options: []Option{
				{Name: "prompt", Type: OptionString, Required: true},
				{Name: "format", Type: OptionString, Default: "raw", Choices: []string{"raw", "markdown", "json"}},
			},
			Handler: func(_ context.Context, args Args, pctx *Context) (Result, error) {
				called.Add(1)
				return OK("generated", map[string]any{
					"prompt": args.String("prompt"),
					"format": args.String("format"),
					"extra":  args.Extra(),
					"plugin": pctx.PluginID(),
				}).WithFiles("out.js"), nil
			},
		},
		failingCommand("explode"),
		{
			Name:           "partial",
			PartialResults: true,
			Handler: func(context.Context, Args, *Context) (Result, error) {
				return Result{Success: false, Message: "half done", Data: []int{1}}, nil
			},
		},
	}

	r := newRegistry(t)
	_, err := r.LoadAll(context.Background(), []Factory{factoryOf(p)})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("alias and defaults", func(t *testing.T) {
		res := r.Dispatch(ctx, "gen", map[string]any{"prompt": "sort a list", "dry-run": true})
		require.True(t, res.Success, res.Error)
		assert.Empty(t, res.Error)
		assert.Empty(t, res.Kind)
		assert.Equal(t, []string{"out.js"}, res.Files)
		data := res.Data.(map[string]any)
		assert.Equal(t, "raw", data["format"])
		assert.Equal(t, "gen", data["plugin"])
		assert.Equal(t, map[string]any{"dry-run": true}, data["extra"])
	})

	t.Run("missing required option never calls the handler", func(t *testing.T) {
		before := called.Load()
		res := r.Dispatch(ctx, "generate-code", map[string]any{})
		assert.False(t, res.Success)
		assert.Equal(t, ferrors.KindMissingRequiredOption, res.Kind)
		assert.NotEmpty(t, res.Error)
		assert.Equal(t, before, called.Load())
	})

	t.Run("choice outside the set", func(t *testing.T) {
		before := called.Load()
		res := r.Dispatch(ctx, "generate-code", map[string]any{"prompt": "x", "format": "xml"})
		assert.Equal(t, ferrors.KindInvalidOptionChoice, res.Kind)
		assert.Equal(t, before, called.Load())
	})

	t.Run("unknown command", func(t *testing.T) {
		res := r.Dispatch(ctx, "nope", nil)
		assert.False(t, res.Success)
		assert.Equal(t, ferrors.KindUnknownCommand, res.Kind)
	})

	t.Run("handler error", func(t *testing.T) {
		res := r.Dispatch(ctx, "explode", nil)
		assert.False(t, res.Success)
		assert.Equal(t, ferrors.KindHandlerFailure, res.Kind)
		assert.Equal(t, "backend unavailable", res.Error)
		assert.Nil(t, res.Data, "data is cleared on failure")

		state, _ := r.State("gen")
		assert.Equal(t, StateReady, state, "returned errors do not fail the plugin")
	})

	t.Run("partial results are kept", func(t *testing.T) {
		res := r.Dispatch(ctx, "partial", nil)
		assert.False(t, res.Success)
		assert.Equal(t, ferrors.KindHandlerFailure, res.Kind)
		assert.Equal(t, "half done", res.Error)
		assert.Equal(t, []int{1}, res.Data)
	})
}

func TestDispatch_PanicFailsPluginAndWithdrawsCommands(t *testing.T) {
	log := &callLog{}
	p := newCleanable(log, "fragile")
	p.cmds = []Command{
		{Name: "crash", Handler: func(context.Context, Args, *Context) (Result, error) { panic("boom") }},
		echoCommand("other"),
	}
	obs := &recordingObserver{}

	r := newRegistry(t, WithObservers(obs))
	_, err := r.LoadAll(context.Background(), []Factory{factoryOf(p)})
	require.NoError(t, err)

	res := r.Dispatch(context.Background(), "crash", nil)
	assert.False(t, res.Success)
	assert.Equal(t, ferrors.KindHandlerFailure, res.Kind)
	assert.Contains(t, res.Error, "boom")

	state, _ := r.State("fragile")
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, ferrors.KindUnknownCommand, r.Dispatch(context.Background(), "other", nil).Kind)

	r.UnloadAll(context.Background())
	assert.Equal(t, []string{"init:fragile", "cleanup:fragile"}, log.all(), "initialized plugins are cleaned up even after failing")
	assert.Len(t, obs.dispatches, 2)
}

func TestDispatch_ConcurrentAndUnloadWaits(t *testing.T) {
	release := make(chan struct{})
	var running atomic.Int32
	log := &callLog{}
	p := newCleanable(log, "slow")
	p.cmds = []Command{{
		Name: "wait",
		Handler: func(ctx context.Context, _ Args, _ *Context) (Result, error) {
			running.Add(1)
			<-release
			return OK("done", nil), nil
		},
	}}

	r := newRegistry(t)
	_, err := r.LoadAll(context.Background(), []Factory{factoryOf(p)})
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan Result, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.Dispatch(context.Background(), "wait", nil)
		}()
	}
	require.Eventually(t, func() bool { return running.Load() == workers }, time.Second, 5*time.Millisecond)

	unloaded := make(chan struct{})
	go func() {
		r.UnloadAll(context.Background())
		close(unloaded)
	}()

	select {
	case <-unloaded:
		t.Fatal("UnloadAll returned while invocations were running")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Empty(t, log.all()[1:], "cleanup must wait for in-flight invocations")

	close(release)
	wg.Wait()
	<-unloaded
	close(results)
	for res := range results {
		assert.True(t, res.Success)
	}
	assert.Equal(t, []string{"init:slow", "cleanup:slow"}, log.all())
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, CapabilitySet{}, Capabilities(newTestPlugin(nil, "x")))
	assert.Equal(t, CapabilitySet{Cleanup: true}, Capabilities(newCleanable(nil, "x")))
	assert.Equal(t, CapabilitySet{ConfigSchema: true, ConfigValidation: true},
		Capabilities(&validatingPlugin{testPlugin: *newTestPlugin(nil, "x")}))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Ready", StateReady.String())
	assert.Equal(t, "Unknown", State(99).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateReady.Terminal())
}
