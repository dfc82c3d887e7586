// Package ui provides the playback TUI.
package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tribunal-tts/internal/source"
	"github.com/dgnsrekt/tribunal-tts/internal/speech"
	"github.com/dgnsrekt/tribunal-tts/internal/transcript"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
)

const (
	statusBarHeight      = 1
	detailMaxHeight      = 8
	statusMessageTimeout = time.Second * 3
	ellipsis             = "…"
)

// Player is the playback surface the TUI drives.
type Player interface {
	Submit(text string)
	Pause()
	Resume()
	Next()
	Prev()
	Stop()
	Snapshot() speech.Snapshot
	OnStateChange(fn func(isPlaying bool))
	OnSegmentChange(fn func(index int, seg transcript.Segment))
}

type (
	playbackMsg             struct{}
	reloadMsg               struct{ text string }
	statusMessageTimeoutMsg struct{}
	errMsg                  struct{ err error }
)

func (e errMsg) Error() string { return e.err.Error() }

type model struct {
	cfg    Config
	player Player
	text   string

	// playback notifications, coalesced
	events  chan struct{}
	watcher *fsnotify.Watcher

	width    int
	height   int
	viewport viewport.Model
	help     help.Model
	keys     keyMap
	showHelp bool

	status   *StatusDisplay
	snapshot speech.Snapshot
	renderer *glamour.TermRenderer
	detail   string

	statusMessage string
	statusTimer   *time.Timer
}

// NewProgram returns a new Tea program playing text through player.
func NewProgram(cfg Config, player Player, text string) *tea.Program {
	log.Debug("Starting tribunal", "glamour", cfg.GlamourEnabled, "watch", cfg.Watch, "engine", cfg.Engine)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, player, text), opts...)
}

func newModel(cfg Config, player Player, text string) model {
	m := model{
		cfg:      cfg,
		player:   player,
		text:     text,
		events:   make(chan struct{}, 1),
		viewport: viewport.New(0, 0),
		help:     help.New(),
		keys:     defaultKeyMap(),
		status:   NewStatusDisplay(),
	}

	notify := func() {
		select {
		case m.events <- struct{}{}:
		default:
		}
	}
	player.OnStateChange(func(bool) { notify() })
	player.OnSegmentChange(func(int, transcript.Segment) { notify() })

	if cfg.Watch && cfg.Path != "" {
		var err error
		m.watcher, err = fsnotify.NewWatcher()
		if err != nil {
			log.Error("error creating fsnotify watcher", "error", err)
		}
	}
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForPlayback(m.events),
		submit(m.player, m.text),
	}
	if m.watcher != nil {
		cmds = append(cmds, m.watchFile)
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.player.Stop()
			if m.watcher != nil {
				_ = m.watcher.Close()
			}
			return m, tea.Quit

		case key.Matches(msg, m.keys.Toggle):
			switch m.player.Snapshot().State {
			case speech.StatePlaying:
				m.player.Pause()
			case speech.StatePaused:
				m.player.Resume()
			default:
				m.player.Submit(m.text)
			}
			return m.refresh(), nil

		case key.Matches(msg, m.keys.Next):
			m.player.Next()
			return m.refresh(), nil

		case key.Matches(msg, m.keys.Prev):
			m.player.Prev()
			return m.refresh(), nil

		case key.Matches(msg, m.keys.Stop):
			m.player.Stop()
			return m.refresh(), nil

		case key.Matches(msg, m.keys.Replay):
			m.player.Submit(m.text)
			return m.refresh(), nil

		case key.Matches(msg, m.keys.Copy):
			seg, ok := m.snapshot.Current()
			if !ok {
				break
			}
			note := "Copied " + seg.Speaker
			if err := clipboard.WriteAll(seg.Speakable()); err != nil {
				log.Debug("clipboard unavailable", "error", err)
				note = "Clipboard unavailable"
			}
			cmd := m.showStatusMessage(note)
			return m, cmd

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp
			m.setSize(m.width, m.height)
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		m.renderer = newRenderer(m.cfg, msg.Width)
		return m.refresh(), nil

	case playbackMsg:
		return m.refresh(), waitForPlayback(m.events)

	case reloadMsg:
		log.Info("transcript changed, resubmitting", "path", m.cfg.Path)
		m.text = msg.text
		m.player.Submit(m.text)
		cmd := m.showStatusMessage("Reloaded")
		return m.refresh(), tea.Batch(cmd, m.watchFile)

	case statusMessageTimeoutMsg:
		m.statusMessage = ""

	case errMsg:
		log.Error("ui error", "error", msg.err)
		cmds = append(cmds, m.showStatusMessage(msg.Error()))
		if m.watcher != nil {
			cmds = append(cmds, m.watchFile)
		}
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// refresh re-reads the playback state and re-renders what depends on it.
func (m model) refresh() model {
	prev := m.snapshot
	m.snapshot = m.player.Snapshot()
	m.status.Update(m.snapshot)

	m.viewport.SetContent(renderSegments(m.snapshot, m.viewport.Width))
	m.follow()

	if prev.Index != m.snapshot.Index || prev.State != m.snapshot.State || len(prev.Segments) != len(m.snapshot.Segments) || m.detail == "" {
		m.detail = m.renderDetail()
		m.setSize(m.width, m.height)
	}
	return m
}

// follow scrolls the segment list so the current segment is visible.
func (m *model) follow() {
	if m.snapshot.State == speech.StateIdle || m.viewport.Height <= 0 {
		return
	}
	i := m.snapshot.Index
	switch {
	case i < m.viewport.YOffset:
		m.viewport.SetYOffset(i)
	case i >= m.viewport.YOffset+m.viewport.Height:
		m.viewport.SetYOffset(i - m.viewport.Height + 1)
	}
}

func (m *model) setSize(w, h int) {
	m.width, m.height = w, h
	m.help.Width = w

	used := statusBarHeight
	if m.detail != "" {
		used += lipgloss.Height(m.detail)
	}
	if m.showHelp {
		used += lipgloss.Height(m.help.View(m.keys))
	}
	m.viewport.Width = w
	m.viewport.Height = max(0, h-used)
}

func (m model) renderDetail() string {
	seg, ok := m.snapshot.Current()
	if !ok || m.snapshot.State == speech.StateIdle {
		return ""
	}

	md := fmt.Sprintf("## %s\n\n%s", seg.Speaker, seg.Speakable())
	out := md
	if m.renderer != nil && m.cfg.GlamourEnabled {
		r, err := m.renderer.Render(md)
		if err != nil {
			log.Error("error rendering with Glamour", "error", err)
		} else {
			out = strings.Trim(r, "\n")
		}
	}
	return lipgloss.NewStyle().MaxHeight(detailMaxHeight).Render(out)
}

func newRenderer(cfg Config, width int) *glamour.TermRenderer {
	w := width
	if cfg.GlamourMaxWidth > 0 {
		w = min(w, int(cfg.GlamourMaxWidth)) //nolint:gosec
	}

	style := glamour.WithStandardStyle(cfg.GlamourStyle)
	if cfg.GlamourStyle == "" || cfg.GlamourStyle == styles.AutoStyle {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(max(0, w-2)))
	if err != nil {
		log.Error("error creating glamour renderer", "error", err)
		return nil
	}
	return r
}

func (m model) View() string {
	var b strings.Builder
	fmt.Fprint(&b, m.viewport.View()+"\n")
	if m.detail != "" {
		fmt.Fprint(&b, m.detail+"\n")
	}

	m.statusBarView(&b)

	if m.showHelp {
		fmt.Fprint(&b, "\n"+m.help.View(m.keys))
	}
	return b.String()
}

func (m model) statusBarView(b *strings.Builder) {
	showStatusMessage := m.statusMessage != ""

	logo := logoView()
	state := " " + m.status.CompactStatus(m.width/4) + " "

	helpNote := statusBarHelpStyle(" ? Help ")

	note := m.cfg.Name
	if m.cfg.Engine != "" {
		note += " · " + m.cfg.Engine
	}
	if showStatusMessage {
		note = m.statusMessage
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(state)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	if showStatusMessage {
		note = statusBarMessageStyle(note)
	} else {
		note = statusBarNoteStyle(note)
	}

	padding := max(0,
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(state)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := statusBarNoteStyle(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s%s", logo, state, note, emptySpace, helpNote)
}

func (m *model) showStatusMessage(msg string) tea.Cmd {
	m.statusMessage = msg
	if m.statusTimer != nil {
		m.statusTimer.Stop()
	}
	m.statusTimer = time.NewTimer(statusMessageTimeout)
	timer := m.statusTimer
	return func() tea.Msg {
		<-timer.C
		return statusMessageTimeoutMsg{}
	}
}

// COMMANDS

func waitForPlayback(events <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-events
		return playbackMsg{}
	}
}

func submit(p Player, text string) tea.Cmd {
	return func() tea.Msg {
		p.Submit(text)
		return nil
	}
}

func (m model) watchFile() tea.Msg {
	dir := filepath.Dir(m.cfg.Path)

	if err := m.watcher.Add(dir); err != nil {
		log.Error("error adding dir to fsnotify watcher", "error", err)
		return nil
	}
	log.Info("fsnotify watching dir", "dir", dir)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != m.cfg.Path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			src, err := source.Load(context.Background(), m.cfg.Path)
			if err != nil {
				return errMsg{err}
			}
			return reloadMsg{text: src.Text}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("fsnotify error", "dir", dir, "error", err)
		}
	}
}
