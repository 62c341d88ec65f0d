package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/joshuapare/kcore/internal/logger"
	"github.com/joshuapare/kcore/kernel"
	"github.com/joshuapare/kcore/kernel/alloc"
	"github.com/joshuapare/kcore/kernel/platform"
)

var (
	watchMaxSize   uint
	watchStepTicks uint32
	watchSeed      int64
)

func init() {
	cmd := newWatchCmd()
	cmd.Flags().UintVar(&watchMaxSize, "max-size", 512, "Largest block the workload requests")
	cmd.Flags().Uint32Var(&watchStepTicks, "step-ticks", 4, "Ticks the workload sleeps between heap operations")
	cmd.Flags().Int64Var(&watchSeed, "seed", 1, "Workload random seed")
	rootCmd.AddCommand(cmd)
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the heap live under a random workload",
		Long: `The watch command boots the machine with a real-time timer and runs a
random allocate/release workload that sleeps on the tick clock between steps.
An interactive view shows the clock, heap usage, an arena map and the free list.

Example:
  kcorectl watch
  kcorectl watch --mem 1048576 --max-size 4096 --step-ticks 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context())
		},
	}
	return cmd
}

func runWatch(ctx context.Context) error {
	r, m, err := bootMachine()
	if err != nil {
		return err
	}
	defer r.Close()

	// Stopped before the deferred Close, so no tick reads an unmapped arena.
	stopTimer := startTimer(ctx, m, r.Clock().Frequency())
	defer stopTimer()

	w := newWorkload(r, watchMaxSize, watchStepTicks, watchSeed)
	wctx, stop := context.WithCancel(ctx)
	defer stop()
	go w.run(wctx)

	p := tea.NewProgram(newWatchModel(r, m, w), tea.WithAltScreen())
	_, err = p.Run()

	// The workload finishes its current step on the still running timer.
	stop()
	<-w.done
	if err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("error running TUI: %w", err)
	}
	return w.failure()
}

// workload is the foreground flow the watch view observes. It runs on its
// own goroutine and is the only caller of Allocate, Release and Await.
type workload struct {
	r         *kernel.Runtime
	maxSize   uint
	stepTicks uint32
	rng       *rand.Rand

	paused   atomic.Bool
	allocs   atomic.Uint64
	releases atomic.Uint64
	failed   atomic.Pointer[error]
	done     chan struct{}
}

func newWorkload(r *kernel.Runtime, maxSize uint, stepTicks uint32, seed int64) *workload {
	if maxSize == 0 {
		maxSize = 1
	}
	return &workload{
		r:         r,
		maxSize:   maxSize,
		stepTicks: stepTicks,
		rng:       rand.New(rand.NewSource(seed)),
		done:      make(chan struct{}),
	}
}

// run loops until ctx is done or the kernel reports a fatal error.
func (w *workload) run(ctx context.Context) {
	defer close(w.done)
	defer func() {
		if v := recover(); v != nil {
			fe, ok := v.(*platform.FatalError)
			if !ok {
				panic(v)
			}
			w.fail(fe)
		}
	}()

	var live []uint64
	for ctx.Err() == nil {
		if !w.paused.Load() {
			var err error
			if live, err = w.step(live); err != nil {
				w.fail(err)
				return
			}
		}
		w.pause()
	}
}

// step performs one heap operation. Allocations are favored until the
// largest free segment runs short.
func (w *workload) step(live []uint64) ([]uint64, error) {
	size := uint(w.rng.Intn(int(w.maxSize))) + 1
	u, err := w.r.Heap().Usage()
	if err != nil {
		return live, err
	}

	grow := len(live) == 0 || (w.rng.Intn(5) < 3 && uint64(u.LargestFree) > uint64(size)+16)
	if grow {
		b := w.r.Allocate(size)
		w.allocs.Add(1)
		return append(live, b.Addr), nil
	}
	i := w.rng.Intn(len(live))
	w.r.Release(live[i])
	w.releases.Add(1)
	return append(live[:i], live[i+1:]...), nil
}

// pause awaits stepTicks ticks past the current one.
func (w *workload) pause() {
	n := w.stepTicks
	w.r.Await(w.r.CreateSleepFuture(0, func(now, target uint32) bool {
		return now-target >= n
	}))
}

func (w *workload) fail(err error) {
	w.failed.Store(&err)
}

func (w *workload) failure() error {
	if p := w.failed.Load(); p != nil {
		return *p
	}
	return nil
}

type refreshMsg time.Time

func refresh() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// watchModel is the bubbletea model of the watch view.
type watchModel struct {
	r    *kernel.Runtime
	m    *platform.Machine
	w    *workload
	keys watchKeyMap

	freeList viewport.Model
	width    int
	height   int

	segs   []alloc.Segment
	usage  alloc.Usage
	tick   uint32
	status string
	err    error
}

func newWatchModel(r *kernel.Runtime, m *platform.Machine, w *workload) watchModel {
	return watchModel{
		r:        r,
		m:        m,
		w:        w,
		keys:     defaultWatchKeys(),
		freeList: viewport.New(40, 8),
		width:    80,
		height:   24,
	}
}

func (m watchModel) Init() tea.Cmd {
	return refresh()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.freeList.Width = max(msg.Width-4, 10)
		m.freeList.Height = max(msg.Height-16, 3)
		return m, nil

	case refreshMsg:
		m.sample()
		return m, refresh()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			paused := !m.w.paused.Load()
			m.w.paused.Store(paused)
			if paused {
				m.status = "workload paused"
			} else {
				m.status = "workload running"
			}
			return m, nil
		case key.Matches(msg, m.keys.Verify):
			if err := m.r.Heap().Verify(); err != nil {
				m.err = err
			} else {
				m.status = fmt.Sprintf("heap verified at tick %d", m.r.Clock().Now())
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.freeList, cmd = m.freeList.Update(msg)
	return m, cmd
}

// sample copies the runtime state the view renders.
func (m *watchModel) sample() {
	m.tick = m.r.Clock().Now()
	if err := m.w.failure(); err != nil {
		m.err = err
		return
	}
	segs, err := collectSegments(m.r.Heap())
	if err != nil {
		m.err = err
		return
	}
	u, err := m.r.Heap().Usage()
	if err != nil {
		m.err = err
		return
	}
	m.segs = segs
	m.usage = u

	var b strings.Builder
	for _, s := range segs {
		if s.Free {
			fmt.Fprintf(&b, "0x%08X  %d bytes\n", s.Offset, s.Size)
		}
	}
	m.freeList.SetContent(strings.TrimRight(b.String(), "\n"))
}

func (m watchModel) View() string {
	clockRows := strings.Join([]string{
		statusLine("tick", m.tick),
		statusLine("uptime", time.Duration(m.tick)*time.Second/time.Duration(m.r.Clock().Frequency())),
		statusLine("halts", m.m.Halts()),
		statusLine("allocs", m.w.allocs.Load()),
		statusLine("releases", m.w.releases.Load()),
		statusLine("pending", m.r.Executor().Pending()),
	}, "\n")

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		paneStyle.Render(clockRows),
		paneStyle.Render(renderUsage(m.usage)))

	mapWidth := max(m.width-4, 10)
	body := lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render("kcore heap "+m.r.Arena().String()),
		top,
		paneStyle.Render(renderHeapMap(m.segs, m.usage.ArenaSize, mapWidth)),
		paneStyle.Render(m.freeList.View()),
	)

	status := m.keys.helpLine()
	switch {
	case errors.Is(m.err, alloc.ErrCorrupt):
		status = errorStyle.Render("heap corrupt: " + m.err.Error())
	case m.err != nil:
		status = errorStyle.Render(m.err.Error())
	case m.status != "":
		status = warnStyle.Render(m.status) + "  " + status
	}
	return body + "\n" + statusStyle.Render(status)
}
