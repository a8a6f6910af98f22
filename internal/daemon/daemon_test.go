package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/tilecomp/internal/compositor"
	"github.com/1broseidon/tilecomp/internal/config"
	"github.com/1broseidon/tilecomp/internal/ipc"
	"github.com/1broseidon/tilecomp/internal/platform"
	"github.com/1broseidon/tilecomp/internal/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startLoop(t *testing.T, windows platform.WindowSource) (*compositor.Scheduler, *platform.Headless) {
	t.Helper()
	display := platform.NewHeadless(platform.Screen{ID: 0, Name: "a", Bounds: region.Rect{Width: 200, Height: 100}})
	c, err := compositor.New(compositor.Options{Display: display, Windows: windows, Logger: discardLogger()})
	require.NoError(t, err)
	if stack, ok := windows.(*platform.Stack); ok {
		stack.OnChange = c.WindowsChanged
	}
	sched := compositor.NewScheduler(c, compositor.SchedulerConfig{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return sched, display
}

type fakeLister struct {
	mu      sync.Mutex
	windows []platform.Window
	err     error
}

func (f *fakeLister) set(windows []platform.Window, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = windows
	f.err = err
}

func (f *fakeLister) ListWindows() ([]platform.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windows, f.err
}

func TestReconcilerMirrorsWindowList(t *testing.T) {
	stack := platform.NewStack()
	sched, _ := startLoop(t, stack)
	lister := &fakeLister{}
	r := NewReconciler(ReconcilerConfig{Logger: discardLogger()}, lister, stack, sched)

	lister.set([]platform.Window{
		{ID: 1, Bounds: region.Rect{Width: 10, Height: 10}, Opaque: true, Visible: true},
		{ID: 2, Bounds: region.Rect{X: 20, Width: 10, Height: 10}, Opaque: true, Visible: true},
	}, nil)
	r.ReconcileNow(context.Background())

	var ids []platform.WindowID
	require.NoError(t, sched.Call(context.Background(), func(*compositor.Compositor) error {
		for _, w := range stack.Windows() {
			ids = append(ids, w.ID)
		}
		return nil
	}))
	assert.Equal(t, []platform.WindowID{1, 2}, ids)

	// A listing failure leaves the stack alone.
	lister.set(nil, errors.New("x server gone"))
	r.ReconcileNow(context.Background())
	require.NoError(t, sched.Call(context.Background(), func(*compositor.Compositor) error {
		assert.Equal(t, 2, stack.Len())
		return nil
	}))
}

func TestSynchronizerAppliesChangedSections(t *testing.T) {
	sched, display := startLoop(t, platform.NewStack())
	initial := config.DefaultConfig()
	s := NewSynchronizer(sched, initial, discardLogger())

	next := config.DefaultConfig()
	next.Background.Color = "#ff0000"
	next.Background.Mode = "tile"
	next.Theme.BadgeBackground = "#000000"
	require.NoError(t, s.Apply(context.Background(), next))
	assert.Same(t, next, s.Current())

	require.NoError(t, sched.Call(context.Background(), func(c *compositor.Compositor) error {
		assert.Equal(t, "#ff0000", c.BackgroundColor())
		assert.Equal(t, compositor.WallpaperTile, c.WallpaperMode())
		assert.Equal(t, uint8(0xff), c.Theme().BadgeBackground.A)
		assert.Equal(t, uint8(0), c.Theme().BadgeBackground.R)
		return nil
	}))
	require.Eventually(t, func() bool {
		r, _, _, _ := display.Frame(0).At(50, 50).RGBA()
		return r == 0xffff
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSynchronizerRejectsMissingCursor(t *testing.T) {
	sched, _ := startLoop(t, platform.NewStack())
	initial := config.DefaultConfig()
	s := NewSynchronizer(sched, initial, discardLogger())

	next := config.DefaultConfig()
	next.Cursor.Image = filepath.Join(t.TempDir(), "missing.png")
	require.Error(t, s.Apply(context.Background(), next))
	assert.Same(t, initial, s.Current())
}

func TestThemeFromConfigRejectsBadColor(t *testing.T) {
	tc := config.DefaultConfig().Theme
	tc.WindowFace = "nope"
	_, err := ThemeFromConfig(tc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "theme.window_face")
}

func TestScreensFromConfig(t *testing.T) {
	screens := ScreensFromConfig(config.HeadlessConfig{Screens: []config.ScreenConfig{
		{Name: "left", Width: 100, Height: 50},
		{Name: "right", X: 100, Width: 80, Height: 50, NativeSwap: true},
	}})
	require.Len(t, screens, 2)
	assert.Equal(t, 1, screens[1].ID)
	assert.Equal(t, region.Rect{X: 100, Width: 80, Height: 50}, screens[1].Bounds)
	assert.True(t, screens[1].CanSetBuffer)
}

func TestRestartRequired(t *testing.T) {
	a := config.DefaultConfig()
	b := config.DefaultConfig()
	assert.False(t, restartRequired(a, b))
	b.Background.Color = "#000000"
	assert.False(t, restartRequired(a, b))
	b.Compositor.RefreshHz = 30
	assert.True(t, restartRequired(a, b))
}

func TestWritePIDFileRefusesLiveOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.pid")

	// The parent of the test process is alive and is not us.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())), 0600))
	err := writePIDFile(path)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))
	require.NoError(t, writePIDFile(path))
	pid, err := ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestRunHeadlessServesIPC(t *testing.T) {
	dir, err := os.MkdirTemp("", "tcd")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	cfg := config.DefaultConfig()
	cfg.Backend = config.BackendHeadless
	cfg.Headless.Screens = []config.ScreenConfig{{Name: "h0", Width: 320, Height: 200}}
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, cfg.SaveTo(configPath))

	socket := filepath.Join(dir, "s.sock")
	pidPath := filepath.Join(dir, "d.pid")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{
			Config:     cfg,
			ConfigPath: configPath,
			SocketPath: socket,
			PIDPath:    pidPath,
			Logger:     discardLogger(),
		})
	}()

	client := ipc.NewClientWithSocket(socket)
	require.Eventually(t, func() bool { return client.Ping() == nil }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, client.PutWindow(ipc.WindowPayload{ID: 3, Bounds: region.Rect{Width: 50, Height: 50}, Color: "blue"}))
	status, err := client.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, config.BackendHeadless, status.Backend)
	assert.Equal(t, 1, status.Windows)
	require.Len(t, status.Compositor.Screens, 1)
	assert.Equal(t, "h0", status.Compositor.Screens[0].Name)

	next := *cfg
	next.Background.Color = "#00ff00"
	require.NoError(t, next.SaveTo(configPath))
	require.NoError(t, client.Reload())
	status, err = client.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "#00ff00", status.Compositor.Background)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}
	_, err = os.Stat(pidPath)
	assert.True(t, os.IsNotExist(err))
}
