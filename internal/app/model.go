package app

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/lipgloss"
	"github.com/mddudha/audiomind-app/internal/daemon"
	"github.com/mddudha/audiomind-app/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

// PanelFocus tracks which panel has keyboard focus.
type PanelFocus int

const (
	FocusSessions PanelFocus = iota
	FocusTranscript
)

// Recording states as reported by the daemon.
const (
	stateIdle      = "notRecording"
	stateRecording = "recording"
	statePaused    = "paused"
)

// waveWidth is the number of level samples the daemon keeps.
const waveWidth = 50

// sessionView is a historical session opened from the sessions panel.
type sessionView struct {
	id         string
	segments   []daemon.SegmentInfo
	transcript string
}

// Model is the root bubbletea model for the audiomind TUI.
type Model struct {
	socketPath string

	// Connection state
	client    *daemon.Client // command connection
	evClient  *daemon.Client // event subscription connection
	connected bool
	connError string

	// Recording state
	state        string
	sessionID    string
	elapsed      string
	level        float32
	levels       []float32
	sessionCount int

	// Segments of the live (or most recent) session
	segments []daemon.SegmentInfo

	// Sessions panel
	sessions        []daemon.SessionInfo
	selectedSession int
	pendingDelete   string
	viewing         *sessionView

	// UI state
	focusedPanel     PanelFocus
	width            int
	height           int
	transcriptScroll int
	transcriptLive   bool

	// Errors
	errorMessage   string
	errorTransient bool

	statusText string

	// Reconnect
	reconnecting     bool
	reconnectAttempt int
	reconnectDelay   *backoff.ExponentialBackOff
}

// New creates a Model that talks to the daemon at socketPath.
func New(socketPath string) Model {
	delay := backoff.NewExponentialBackOff()
	delay.InitialInterval = time.Second
	delay.MaxInterval = 16 * time.Second
	delay.Multiplier = 2
	delay.RandomizationFactor = 0
	delay.Reset()

	return Model{
		socketPath:     socketPath,
		state:          stateIdle,
		elapsed:        "00:00",
		statusText:     "Connecting to audiomind daemon...",
		transcriptLive: true,
		focusedPanel:   FocusTranscript,
		reconnectDelay: delay,
	}
}

// Init returns the initial command: connect to the daemon.
func (m Model) Init() tea.Cmd {
	return connectCmd(m.socketPath)
}

// connectCmd attempts to connect to the daemon with two connections:
// one for commands, one for event subscription.
func connectCmd(sockPath string) tea.Cmd {
	return func() tea.Msg {
		client, err := daemon.Connect(sockPath)
		if err != nil {
			return DaemonConnectErrorMsg{Err: err}
		}
		evClient, err := daemon.Connect(sockPath)
		if err != nil {
			client.Close()
			return DaemonConnectErrorMsg{Err: err}
		}
		return DaemonConnectedMsg{Client: client, EvClient: evClient}
	}
}

// subscribeCmd sends a subscribe command on the event client and starts reading events.
func subscribeCmd(evClient *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		if _, err := evClient.Do(daemon.Command{Cmd: daemon.CmdSubscribe}); err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return readEventCmd(evClient)()
	}
}

// readEventCmd reads the next event from the event client.
func readEventCmd(evClient *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		ev, err := evClient.ReadEvent()
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return DaemonEventMsg{Event: ev}
	}
}

// statusCmd fetches daemon status.
func statusCmd(client *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdStatus})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return StatusResponseMsg{Response: resp}
	}
}

// controlCmd sends a recording control command.
func controlCmd(client *daemon.Client, name string) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: name})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return ControlResponseMsg{Cmd: name, Response: resp}
	}
}

// sessionsCmd fetches the session list.
func sessionsCmd(client *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdSessions})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return SessionsResponseMsg{Response: resp}
	}
}

// transcriptCmd fetches one session's segments.
func transcriptCmd(client *daemon.Client, sessionID string) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdTranscript, SessionID: sessionID})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return TranscriptResponseMsg{Response: resp}
	}
}

// deleteCmd deletes a session.
func deleteCmd(client *daemon.Client, sessionID string) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdDelete, SessionID: sessionID})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return DeleteResponseMsg{SessionID: sessionID, Response: resp}
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// reconnectCmd schedules a reconnection attempt: 1s, 2s, 4s, 8s, then 16s.
func reconnectCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ReconnectTickMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case DaemonConnectedMsg:
		m.client = msg.Client
		m.evClient = msg.EvClient
		m.connected = true
		m.connError = ""
		m.reconnecting = false
		m.reconnectAttempt = 0
		m.reconnectDelay.Reset()
		m.statusText = "Connected"
		cmds := []tea.Cmd{statusCmd(m.client), sessionsCmd(m.client)}
		if m.evClient != nil {
			cmds = append(cmds, subscribeCmd(m.evClient))
		}
		return m, tea.Batch(cmds...)

	case DaemonConnectErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.reconnecting = true
		m.statusText = "Daemon not running. Reconnecting..."
		return m, reconnectCmd(m.reconnectDelay.NextBackOff())

	case StatusResponseMsg:
		m.applyStatus(msg.Response)
		return m, nil

	case ControlResponseMsg:
		r := msg.Response
		if !r.OK {
			return m, m.transientError(r.Error)
		}
		m.applyStatus(r)
		return m, nil

	case SessionsResponseMsg:
		if !msg.Response.OK {
			return m, m.transientError(msg.Response.Error)
		}
		m.sessions = msg.Response.Sessions
		if m.selectedSession >= len(m.sessions) {
			m.selectedSession = max(0, len(m.sessions)-1)
		}
		return m, nil

	case TranscriptResponseMsg:
		r := msg.Response
		if !r.OK {
			return m, m.transientError(r.Error)
		}
		view := &sessionView{id: r.SessionID, segments: r.SegmentList}
		if r.Transcript != nil {
			view.transcript = *r.Transcript
		}
		m.viewing = view
		m.transcriptLive = false
		m.transcriptScroll = 0
		return m, nil

	case DeleteResponseMsg:
		m.pendingDelete = ""
		if !msg.Response.OK {
			return m, m.transientError(msg.Response.Error)
		}
		if m.viewing != nil && m.viewing.id == msg.SessionID {
			m.viewing = nil
			m.transcriptLive = true
		}
		if m.sessionID == msg.SessionID {
			m.sessionID = ""
			m.segments = nil
		}
		m.statusText = "Session deleted"
		return m, sessionsCmd(m.client)

	case DaemonEventMsg:
		cmd := m.handleEvent(msg.Event)
		// Continue reading events on event client
		return m, tea.Batch(cmd, readEventCmd(m.evClient))

	case DaemonEventErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.statusText = "Disconnected. Reconnecting..."
		m.reconnecting = true
		if m.client != nil {
			m.client.Close()
			m.client = nil
		}
		if m.evClient != nil {
			m.evClient.Close()
			m.evClient = nil
		}
		return m, reconnectCmd(m.reconnectDelay.NextBackOff())

	case ReconnectTickMsg:
		m.reconnectAttempt++
		return m, connectCmd(m.socketPath)

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) transientError(msg string) tea.Cmd {
	m.errorMessage = msg
	m.errorTransient = true
	return clearTransientErrorCmd()
}

// applyStatus copies a status-shaped response into the model.
func (m *Model) applyStatus(r daemon.Response) {
	if r.State != "" {
		m.setState(r.State)
	}
	if r.SessionID != m.sessionID {
		m.sessionID = r.SessionID
		m.segments = nil
	}
	if r.Elapsed != "" {
		m.elapsed = r.Elapsed
	}
	if r.Level != nil {
		m.level = *r.Level
	}
	if r.Levels != nil {
		m.levels = r.Levels
	}
	if r.SessionCount != nil {
		m.sessionCount = *r.SessionCount
	}
	if r.SegmentList != nil {
		m.segments = slices.Clone(r.SegmentList)
		sortSegments(m.segments)
	}
	if r.LastError != "" {
		m.errorMessage = r.LastError
		m.errorTransient = false
	}
}

func (m *Model) setState(state string) {
	m.state = state
	switch state {
	case stateRecording:
		m.statusText = "Recording"
	case statePaused:
		m.statusText = "Paused"
	default:
		m.statusText = "Idle"
		m.elapsed = "00:00"
		m.level = 0
	}
}

// handleEvent processes a daemon event and returns any resulting command.
func (m *Model) handleEvent(ev daemon.Event) tea.Cmd {
	switch ev.Event {
	case "state":
		prev := m.state
		if ev.State != "" {
			m.setState(ev.State)
		}
		if ev.SessionCount != nil {
			m.sessionCount = *ev.SessionCount
		}
		if ev.SessionID != "" && ev.SessionID != m.sessionID {
			m.sessionID = ev.SessionID
			m.segments = nil
			if m.viewing == nil {
				m.transcriptLive = true
			}
		}
		// Refresh the list when a session starts or ends.
		if (prev == stateIdle) != (m.state == stateIdle) && m.client != nil {
			return sessionsCmd(m.client)
		}

	case "elapsed":
		m.elapsed = ev.Elapsed

	case "level":
		if ev.Level != nil {
			m.level = *ev.Level
		}
		if ev.Levels != nil {
			m.levels = ev.Levels
		}

	case "segment":
		if ev.Segment == nil {
			return nil
		}
		seg := *ev.Segment
		if m.sessionID == "" {
			m.sessionID = seg.SessionID
		}
		if seg.SessionID == m.sessionID {
			m.segments = upsertSegment(m.segments, seg)
			if m.transcriptLive && m.viewing == nil {
				m.scrollToBottom()
			}
		}
		if m.viewing != nil && m.viewing.id == seg.SessionID {
			m.viewing.segments = upsertSegment(m.viewing.segments, seg)
		}

	case "error":
		m.errorMessage = ev.Message
		m.errorTransient = false
	}

	return nil
}

// upsertSegment replaces the segment with the same id or inserts it, keeping
// capture order.
func upsertSegment(segs []daemon.SegmentInfo, seg daemon.SegmentInfo) []daemon.SegmentInfo {
	for i := range segs {
		if segs[i].ID == seg.ID {
			segs[i] = seg
			return segs
		}
	}
	segs = append(segs, seg)
	sortSegments(segs)
	return segs
}

func sortSegments(segs []daemon.SegmentInfo) {
	slices.SortStableFunc(segs, func(a, b daemon.SegmentInfo) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key != KeyDelete {
		m.pendingDelete = ""
	}

	switch key {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		if m.client != nil {
			m.client.Close()
		}
		if m.evClient != nil {
			m.evClient.Close()
		}
		return m, tea.Quit

	case KeySpace:
		if !m.connected {
			return m, nil
		}
		return m, controlCmd(m.client, daemon.CmdToggle)

	case KeyPause:
		if !m.connected {
			return m, nil
		}
		switch m.state {
		case stateRecording:
			return m, controlCmd(m.client, daemon.CmdPause)
		case statePaused:
			return m, controlCmd(m.client, daemon.CmdResume)
		}
		return m, nil

	case KeyStop:
		if !m.connected || m.state == stateIdle {
			return m, nil
		}
		return m, controlCmd(m.client, daemon.CmdStop)

	case KeyDismiss:
		if m.errorMessage == "" {
			return m, nil
		}
		transient := m.errorTransient
		m.errorMessage = ""
		m.errorTransient = false
		if !transient && m.connected {
			return m, controlCmd(m.client, daemon.CmdDismiss)
		}
		return m, nil

	case KeyRefresh:
		if !m.connected {
			return m, nil
		}
		return m, tea.Batch(statusCmd(m.client), sessionsCmd(m.client))

	case KeyTab:
		if m.focusedPanel == FocusSessions {
			m.focusedPanel = FocusTranscript
		} else {
			m.focusedPanel = FocusSessions
		}
		return m, nil

	case KeyJ:
		if m.focusedPanel == FocusSessions {
			if m.selectedSession < len(m.sessions)-1 {
				m.selectedSession++
			}
			return m, nil
		}
		return m.scrollDown(), nil

	case KeyK:
		if m.focusedPanel == FocusSessions {
			if m.selectedSession > 0 {
				m.selectedSession--
			}
			return m, nil
		}
		return m.scrollUp(), nil

	case KeyEnter:
		if m.focusedPanel != FocusSessions || !m.connected || m.selectedSession >= len(m.sessions) {
			return m, nil
		}
		m.focusedPanel = FocusTranscript
		return m, transcriptCmd(m.client, m.sessions[m.selectedSession].ID)

	case KeyEsc:
		if m.viewing != nil {
			m.viewing = nil
			m.transcriptLive = true
			m.scrollToBottom()
		}
		return m, nil

	case KeyDelete:
		if m.focusedPanel != FocusSessions || !m.connected || m.selectedSession >= len(m.sessions) {
			return m, nil
		}
		id := m.sessions[m.selectedSession].ID
		if m.pendingDelete != id {
			m.pendingDelete = id
			m.statusText = "Press d again to delete this session"
			return m, nil
		}
		return m, deleteCmd(m.client, id)

	case KeyUp:
		return m.scrollUp(), nil

	case KeyDown:
		return m.scrollDown(), nil
	}

	return m, nil
}

func (m Model) scrollUp() Model {
	if m.focusedPanel == FocusTranscript {
		m.transcriptLive = false
		if m.transcriptScroll > 0 {
			m.transcriptScroll--
		}
	}
	return m
}

func (m Model) scrollDown() Model {
	if m.focusedPanel == FocusTranscript {
		maxScroll := m.maxTranscriptScroll()
		m.transcriptScroll++
		if m.transcriptScroll >= maxScroll {
			m.transcriptScroll = maxScroll
			if m.viewing == nil {
				m.transcriptLive = true
			}
		}
	}
	return m
}

func (m *Model) scrollToBottom() {
	m.transcriptScroll = m.maxTranscriptScroll()
}

// shownSegments are the segments the transcript panel displays.
func (m Model) shownSegments() []daemon.SegmentInfo {
	if m.viewing != nil {
		return m.viewing.segments
	}
	return m.segments
}

func (m Model) maxTranscriptScroll() int {
	total := len(m.transcriptLines(m.transcriptPanelWidth()))
	visible := m.transcriptVisibleLines() - 1
	if total <= visible {
		return 0
	}
	return total - visible
}

func (m Model) transcriptVisibleLines() int {
	if m.height == 0 {
		return 20
	}
	// Reserve: header(1) + status(1) + wave(1) + divider(2) + error(1) + footer(1) + padding
	reserved := 8
	return max(5, m.height-reserved)
}

func (m Model) sessionPanelWidth() int {
	if m.width == 0 {
		return 30
	}
	return max(24, m.width*30/100)
}

func (m Model) transcriptPanelWidth() int {
	if m.width == 0 {
		return 60
	}
	return max(30, m.width-m.sessionPanelWidth()-3)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, m.renderWave())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	// Main content: sessions | transcript
	sections = append(sections, m.renderMainContent())

	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}

	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("AUDIOMIND")
	count := ui.DimStyle.Render(fmt.Sprintf("  %d sessions", m.sessionCount))
	status := ui.StatusStyle.Render("  " + m.statusText)
	return title + count + status
}

func (m Model) renderStatusBar() string {
	var dot string
	switch m.state {
	case stateRecording:
		dot = ui.RecordingDotStyle.Render("● REC")
	case statePaused:
		dot = ui.PausedStyle.Render("❚❚ PAUSED")
	default:
		dot = ui.IdleDotStyle.Render("○ IDLE")
	}

	timer := "  " + ui.TimerStyle.Render(m.elapsed)

	var meter string
	if m.state == stateRecording {
		meter = "  " + ui.DimStyle.Render("MIC") + " " + ui.LevelMeter(m.level, 8)
	}

	return dot + timer + meter
}

func (m Model) renderWave() string {
	if m.state == stateIdle {
		return ui.DimStyle.Render(ui.Sparkline(nil, waveWidth))
	}
	return ui.WaveStyle.Render(ui.Sparkline(m.levels, waveWidth))
}

func (m Model) renderMainContent() string {
	sessionW := m.sessionPanelWidth()
	transcriptW := m.transcriptPanelWidth()
	contentH := m.transcriptVisibleLines()

	sessionPanel := m.renderSessionPanel(sessionW, contentH)
	transcriptPanel := m.renderTranscriptPanel(transcriptW, contentH)

	divider := ui.DividerStyle.Render("│")

	sessionLines := strings.Split(sessionPanel, "\n")
	transcriptLines := strings.Split(transcriptPanel, "\n")

	for len(sessionLines) < contentH {
		sessionLines = append(sessionLines, strings.Repeat(" ", sessionW))
	}
	for len(transcriptLines) < contentH {
		transcriptLines = append(transcriptLines, "")
	}

	var rows []string
	for i := 0; i < contentH; i++ {
		rows = append(rows, sessionLines[i]+divider+transcriptLines[i])
	}

	return strings.Join(rows, "\n")
}

func (m Model) renderSessionPanel(width, height int) string {
	title := fmt.Sprintf("SESSIONS (%d)", len(m.sessions))
	var header string
	if m.focusedPanel == FocusSessions {
		header = ui.PanelTitleActiveStyle.Render(title)
	} else {
		header = ui.PanelTitleStyle.Render(title)
	}

	lines := []string{padRight(header, width)}

	if len(m.sessions) == 0 {
		lines = append(lines, ui.DimStyle.Render("  No sessions yet"))
	} else {
		// Keep the selection visible.
		start := 0
		if m.selectedSession >= height-1 {
			start = m.selectedSession - (height - 2)
		}
		for i := start; i < len(m.sessions); i++ {
			s := m.sessions[i]
			label := fmt.Sprintf("%s  %2d seg", s.CreatedAt.Local().Format("Jan 02 15:04"), s.SegmentCount)
			if s.Status == "active" {
				label += " ●"
			}

			var line string
			switch {
			case i == m.selectedSession && m.focusedPanel == FocusSessions:
				marker := "> "
				if m.pendingDelete == s.ID {
					marker = "x "
				}
				line = ui.SelectedStyle.Render(marker + label)
			case m.viewing != nil && m.viewing.id == s.ID:
				line = ui.SelectedStyle.Render("  " + label)
			default:
				line = "  " + label
			}
			lines = append(lines, truncateToWidth(line, width))
		}
	}

	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for i, l := range lines {
		lines[i] = padRight(l, width)
	}

	return strings.Join(lines, "\n")
}

// transcriptLines renders the shown segments as display lines.
func (m Model) transcriptLines(width int) []string {
	segs := m.shownSegments()
	if len(segs) == 0 {
		return nil
	}

	// Prefix: "[HH:MM:SS] " = 11 chars visible
	prefixWidth := 11
	textWidth := max(10, width-prefixWidth-2)
	indent := strings.Repeat(" ", prefixWidth)

	var out []string
	for _, seg := range segs {
		ts := ui.TimestampStyle.Render(seg.Timestamp.Local().Format("[15:04:05]"))

		var body []string
		switch seg.Status {
		case "completed":
			body = wrapText(seg.Text, textWidth)
		case "failed":
			body = []string{ui.FailedTextStyle.Render("(transcription failed)")}
		default:
			body = []string{ui.PendingTextStyle.Render("transcribing…")}
		}

		out = append(out, ts+" "+body[0])
		for _, l := range body[1:] {
			out = append(out, indent+l)
		}
	}
	return out
}

func (m Model) renderTranscriptPanel(width, height int) string {
	var badge string
	switch {
	case m.viewing != nil:
		badge = ui.HistoryBadgeStyle.Render(" HISTORY")
	case m.transcriptLive:
		badge = ui.LiveBadgeStyle.Render(" LIVE")
	default:
		badge = ui.ScrollBadgeStyle.Render(" SCROLL")
	}

	var header string
	if m.focusedPanel == FocusTranscript {
		header = ui.PanelTitleActiveStyle.Render("TRANSCRIPT") + badge
	} else {
		header = ui.PanelTitleStyle.Render("TRANSCRIPT") + badge
	}

	lines := []string{header}
	contentHeight := height - 1

	switch {
	case !m.connected:
		if m.reconnecting {
			lines = append(lines, "")
			lines = append(lines, ui.ErrorTextStyle.Render("  Daemon disconnected. Reconnecting..."))
			lines = append(lines, ui.DimStyle.Render("  Start with: audiomind daemon"))
		} else {
			lines = append(lines, ui.DimStyle.Render("  Connecting to audiomind daemon..."))
		}
	case m.viewing == nil && m.sessionID == "":
		lines = append(lines, "")
		lines = append(lines, ui.DimStyle.Render("  Press Space to start recording"))
	case len(m.shownSegments()) == 0:
		lines = append(lines, "")
		lines = append(lines, ui.DimStyle.Render("  No segments"))
	default:
		display := m.transcriptLines(width)

		start := 0
		if m.transcriptLive && m.viewing == nil {
			start = max(0, len(display)-contentHeight)
		} else {
			start = min(max(0, m.transcriptScroll), max(0, len(display)-1))
		}
		end := min(start+contentHeight, len(display))

		for i := start; i < end; i++ {
			lines = append(lines, "  "+display[i])
		}
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage) +
		ui.DimStyle.Render("  (x to dismiss)")
}

func (m Model) renderFooter() string {
	var parts []string
	key := func(k, desc string) string {
		return ui.FooterKeyStyle.Render(k) + ui.FooterDescStyle.Render(" "+desc)
	}

	if m.connected {
		switch m.state {
		case stateRecording:
			parts = append(parts, key("Space", "Stop"), key("p", "Pause"))
		case statePaused:
			parts = append(parts, key("Space", "Resume"), key("s", "Stop"))
		default:
			parts = append(parts, key("Space", "Record"))
		}
		parts = append(parts, key("Tab", "Focus"), key("j/k", "Nav"), key("Enter", "Open"), key("d", "Delete"))
		if m.viewing != nil {
			parts = append(parts, key("Esc", "Live"))
		}
	}

	parts = append(parts, key("q", "Quit"))

	return strings.Join(parts, "  ")
}

// Helpers

func padRight(s string, width int) string {
	// Get visible length (ignoring ANSI codes)
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible <= width {
		return s
	}
	// Simple truncation for non-styled strings
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
