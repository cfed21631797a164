package cmd

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"

	"github.com/grovetools/hpcode/pkg/session"
)

const watchInterval = 5 * time.Second

type sessionsMsg struct {
	views []session.View
	err   error
}

type tickMsg struct{}
type storeChangedMsg struct{}

type watchModel struct {
	ctx     context.Context
	mgr     *session.Manager
	watcher *fsnotify.Watcher
	spinner spinner.Model

	views   []session.View
	err     error
	updated time.Time
}

func newWatchModel(ctx context.Context, mgr *session.Manager, watcher *fsnotify.Watcher) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return watchModel{ctx: ctx, mgr: mgr, watcher: watcher, spinner: s}
}

func (m watchModel) refresh() tea.Msg {
	views, err := m.mgr.List(m.ctx)
	return sessionsMsg{views: views, err: err}
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(watchInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// waitStoreEvent blocks until the session store changes on disk, so a
// `start` from another shell shows up without waiting for the next tick.
func (m watchModel) waitStoreEvent() tea.Cmd {
	if m.watcher == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case _, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			return storeChangedMsg{}
		case _, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return storeChangedMsg{}
		}
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh, m.tick(), m.waitStoreEvent())
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.refresh
		}

	case sessionsMsg:
		m.views = msg.views
		m.err = msg.err
		m.updated = time.Now()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refresh, m.tick())

	case storeChangedMsg:
		return m, tea.Batch(m.refresh, m.waitStoreEvent())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m watchModel) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	s := " " + title.Render("HPCODE SESSIONS") + "  " + m.spinner.View() + "\n\n"

	if m.err != nil {
		s += " " + lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("error: "+m.err.Error()) + "\n"
	} else {
		s += renderSessionTable(m.views, true)
	}

	if !m.updated.IsZero() {
		s += "\n " + muted.Render("updated "+m.updated.Format("15:04:05"))
	}
	s += "\n " + muted.Render("r refresh • q quit") + "\n"
	return s
}

// runListWatch drives the interactive session view. The store directory is
// watched so local starts and stops refresh the view immediately; a periodic
// tick covers changes made from other hosts.
func runListWatch(ctx context.Context, mgr *session.Manager, storeDir string) error {
	var watcher *fsnotify.Watcher
	if w, err := fsnotify.NewWatcher(); err == nil {
		if _, serr := os.Stat(storeDir); serr == nil {
			if werr := w.Add(storeDir); werr == nil {
				watcher = w
				defer w.Close()
			} else {
				w.Close()
			}
		} else {
			w.Close()
		}
	}

	p := tea.NewProgram(newWatchModel(ctx, mgr, watcher), tea.WithContext(ctx))
	_, err := p.Run()
	if err == tea.ErrProgramKilled && ctx.Err() != nil {
		return nil
	}
	return err
}
