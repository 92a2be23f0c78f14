// Package browse is the terminal UI over the query facade: a source picker,
// a paged split-pane job list and a detail view backed by the detail cache.
package browse

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobagg/internal/model"
	"github.com/amishk599/jobagg/internal/service"
)

// Lines per job item in the list view (title + subtitle + blank separator).
const jobItemHeight = 3

const dateLayout = "2006-01-02"

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

// Facade is the slice of service.Service the TUI reads from.
type Facade interface {
	ListJobs(ctx context.Context, req service.ListRequest) (service.ListResult, error)
	GetJobDetail(ctx context.Context, id int64, useCache bool) (model.FullDetail, error)
}

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("39"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	jobTitleStyle = lipgloss.NewStyle().
			Bold(true)

	jobSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedJobTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedJobSubtitleStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("252")).
					Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(12)

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

type pageLoadedMsg struct {
	result service.ListResult
	err    error
}

type detailFetchedMsg struct {
	detail model.FullDetail
	err    error
}

type browseModel struct {
	svc      Facade
	filter   model.Filter
	pageSize int

	page        int
	result      service.ListResult
	pageLoading bool
	pageErr     string

	listViewport    viewport.Model
	previewViewport viewport.Model
	cursor          int
	width           int
	height          int
	ready           bool

	// Detail view state
	view           viewState
	detail         model.FullDetail
	detailLoading  bool
	detailErr      string
	detailViewport viewport.Model

	wantQuit bool
}

func newBrowseModel(svc Facade, filter model.Filter, pageSize int) browseModel {
	return browseModel{
		svc:         svc,
		filter:      filter,
		pageSize:    pageSize,
		page:        1,
		pageLoading: true,
	}
}

func (m browseModel) Init() tea.Cmd {
	return m.loadPageCmd(m.page)
}

func (m browseModel) loadPageCmd(page int) tea.Cmd {
	svc, req := m.svc, service.ListRequest{Page: page, PageSize: m.pageSize, Filter: m.filter}
	return func() tea.Msg {
		res, err := svc.ListJobs(context.Background(), req)
		return pageLoadedMsg{result: res, err: err}
	}
}

func (m browseModel) fetchDetailCmd(id int64, useCache bool) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		d, err := svc.GetJobDetail(context.Background(), id, useCache)
		return detailFetchedMsg{detail: d, err: err}
	}
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case pageLoadedMsg:
		m.pageLoading = false
		if msg.err != nil {
			m.pageErr = msg.err.Error()
			return m, nil
		}
		m.pageErr = ""
		m.result = msg.result
		m.page = msg.result.Page
		m.cursor = 0
		m.listViewport.SetYOffset(0)
		m.recalcContent()
		return m, nil

	case detailFetchedMsg:
		m.detailLoading = false
		if msg.err != nil {
			m.detailErr = msg.err.Error()
		} else {
			m.detailErr = ""
			m.detail = msg.detail
			m.updateJobInPage(msg.detail.Projection)
		}
		m.detailViewport.SetContent(m.renderDetail())
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m browseModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "b":
		m.wantQuit = false
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1)
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		return m, nil
	case "n":
		if !m.pageLoading && m.page < m.result.TotalPages {
			m.pageLoading = true
			return m, m.loadPageCmd(m.page + 1)
		}
		return m, nil
	case "p":
		if !m.pageLoading && m.page > 1 {
			m.pageLoading = true
			return m, m.loadPageCmd(m.page - 1)
		}
		return m, nil
	case "enter":
		return m.openDetailView()
	}

	// Forward other keys (pgup/pgdn/home/end) to the list viewport.
	var cmd tea.Cmd
	m.listViewport, cmd = m.listViewport.Update(msg)
	return m, cmd
}

func (m browseModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.wantQuit = true
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		openURL(m.detail.URL)
		return m, nil
	case "r":
		if !m.detailLoading {
			m.detailLoading = true
			m.detailErr = ""
			m.detailViewport.SetContent(m.renderDetail())
			return m, m.fetchDetailCmd(m.detail.ID, false)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m *browseModel) moveCursor(delta int) {
	m.cursor = clamp(m.cursor+delta, 0, max(len(m.result.Jobs)-1, 0))
	m.recalcContent()
	m.ensureCursorVisible()
}

func (m *browseModel) ensureCursorVisible() {
	vp := &m.listViewport
	cursorTop := m.cursor * jobItemHeight
	cursorBottom := cursorTop + jobItemHeight - 1

	if cursorTop < vp.YOffset {
		vp.SetYOffset(cursorTop)
	} else if cursorBottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(cursorBottom - vp.Height + 1)
	}
}

func (m browseModel) selected() (model.Projection, bool) {
	if len(m.result.Jobs) == 0 {
		return model.Projection{}, false
	}
	return m.result.Jobs[m.cursor], true
}

func (m browseModel) openDetailView() (tea.Model, tea.Cmd) {
	p, ok := m.selected()
	if !ok {
		return m, nil
	}

	m.view = viewDetail
	m.detail = model.FullDetail{Projection: p}
	m.detailErr = ""
	m.detailLoading = true
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())
	return m, m.fetchDetailCmd(p.ID, true)
}

func (m *browseModel) updateJobInPage(p model.Projection) {
	for i := range m.result.Jobs {
		if m.result.Jobs[i].ID == p.ID {
			m.result.Jobs[i] = p
			break
		}
	}
	m.recalcContent()
}

func (m *browseModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	listWidth := max((m.width-5)*2/5, 20)
	previewWidth := max(m.width-5-listWidth, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.listViewport = viewport.New(listWidth, paneHeight)
		m.previewViewport = viewport.New(previewWidth, paneHeight)
		m.ready = true
	} else {
		m.listViewport.Width = listWidth
		m.listViewport.Height = paneHeight
		m.previewViewport.Width = previewWidth
		m.previewViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *browseModel) recalcContent() {
	m.listViewport.SetContent(renderJobs(m.result.Jobs, m.cursor))
	if p, ok := m.selected(); ok {
		m.previewViewport.SetContent(renderPreview(p, m.previewViewport.Width-2))
	} else {
		m.previewViewport.SetContent("")
	}
	m.previewViewport.SetYOffset(0)
}

func (m browseModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.view == viewDetail {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m browseModel) viewList() string {
	listWidth := m.listViewport.Width
	previewWidth := m.previewViewport.Width

	source := m.filter.Source
	if source == "" {
		source = "all sources"
	}
	listHeader := fmt.Sprintf(" Jobs: %s (%d)", source, m.result.Total)
	if m.pageLoading {
		listHeader += "  loading..."
	}

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(listWidth+2).Render(headerStyle.Render(listHeader)),
		" ",
		lipgloss.NewStyle().Width(previewWidth+2).Render(headerStyle.Render(" Preview")),
	)

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		activeBorderStyle.Width(listWidth).Render(m.listViewport.View()),
		" ",
		inactiveBorderStyle.Width(previewWidth).Render(m.previewViewport.View()),
	)

	statusText := fmt.Sprintf(" page %d/%d    ↑/↓ cursor  n/p page  Enter detail  Esc back  q quit",
		m.page, max(m.result.TotalPages, 1))
	if m.pageErr != "" {
		statusText = " error: " + m.pageErr
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m browseModel) viewDetail() string {
	title := detailTitleStyle.Render("Job Details")
	if m.detailLoading {
		title += "  (loading...)"
	}

	content := activeBorderStyle.Width(m.width - 2).Render(m.detailViewport.View())
	statusBar := statusBarStyle.Width(m.width).Render(" o open URL  r refetch  esc/backspace back  ↑/↓ scroll  q quit")
	return title + "\n" + content + "\n" + statusBar
}

func (m browseModel) renderDetail() string {
	d := m.detail
	var b strings.Builder
	writeFields(&b, d.Projection)

	wrapWidth := max(m.width-8, 20)
	b.WriteByte('\n')
	b.WriteString(divider("── Description ", wrapWidth) + "\n\n")

	switch {
	case m.detailLoading:
		b.WriteString(hintStyle.Render("  fetching full posting...") + "\n")
	case m.detailErr != "":
		b.WriteString(warnStyle.Render("⚠ "+m.detailErr) + "\n")
	case d.Unavailable:
		b.WriteString(warnStyle.Render("⚠ The full posting could not be fetched. Showing the stored preview.") + "\n\n")
		b.WriteString(bodyStyle.Render(wordWrap(d.Preview, wrapWidth)) + "\n")
	default:
		if d.FromCache {
			b.WriteString(hintStyle.Render("  cached; press r to refetch") + "\n\n")
		}
		b.WriteString(bodyStyle.Render(wordWrap(d.Description, wrapWidth)) + "\n")
	}
	return b.String()
}

func writeFields(b *strings.Builder, p model.Projection) {
	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}

	b.WriteString(jobTitleStyle.Render(p.Title) + "\n\n")
	addField("Company", p.Company)
	addField("Location", p.Location)
	if p.Remote {
		addField("Remote", "yes")
	}
	addField("Salary", p.Salary)
	addField("Type", p.JobType)
	addField("Source", p.Source)
	if !p.PostedAt.IsZero() {
		addField("Posted", p.PostedAt.Format(dateLayout))
	}
	addField("Views", fmt.Sprint(p.ViewCount))
	addField("URL", p.URL)
}

func renderPreview(p model.Projection, width int) string {
	var b strings.Builder
	writeFields(&b, p)
	if p.Preview != "" {
		b.WriteByte('\n')
		b.WriteString(bodyStyle.Render(wordWrap(p.Preview, max(width, 20))) + "\n")
	}
	return b.String()
}

func renderJobs(jobs []model.Projection, cursor int) string {
	if len(jobs) == 0 {
		return "  (no jobs)"
	}

	var b strings.Builder
	for i, j := range jobs {
		titleSt := jobTitleStyle
		subtitleSt := jobSubtitleStyle
		prefix := "  "
		if i == cursor {
			titleSt = selectedJobTitleStyle
			subtitleSt = selectedJobSubtitleStyle
			prefix = "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(j.Title))
		b.WriteByte('\n')

		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s · %s · %s", j.Company, j.Location, j.PostedAt.Format(dateLayout))))
		b.WriteByte('\n')

		if i < len(jobs)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func divider(label string, width int) string {
	fill := strings.Repeat("─", max(width-len(label), 3))
	return dividerStyle.Render(label + fill)
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	if url == "" {
		return
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// Run launches the split-pane browser over svc, filtered by filter.
// Returns wantQuit=true if the user pressed q/ctrl+c, false if they pressed
// esc to return to the picker.
func Run(svc Facade, filter model.Filter, pageSize int) (bool, error) {
	m := newBrowseModel(svc, filter, pageSize)
	p := tea.NewProgram(m, tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	final := result.(browseModel)
	return final.wantQuit, nil
}
