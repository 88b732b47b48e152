package views

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gravityvi/Todo-app-cansiter/internal/models"
	"github.com/gravityvi/Todo-app-cansiter/internal/taskstore"
	"github.com/gravityvi/Todo-app-cansiter/internal/ui/keys"
	"github.com/gravityvi/Todo-app-cansiter/internal/ui/styles"
)

// OffsetSetting is the settings key holding the last viewed page offset
const OffsetSetting = "page_offset"

// TaskService is the store surface the view drives
type TaskService interface {
	Create(description string) models.Task
	Get(id uint64) (models.Task, error)
	List(offset, limit *uint64) []models.Task
	Update(id uint64, description string) (models.Task, error)
	Delete(id uint64)
	Len() int
}

// Settings persists small pieces of UI state between runs
type Settings interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// lastPageOffset returns the offset of the page holding the last task
func lastPageOffset(total int) uint64 {
	if total <= 0 {
		return 0
	}
	return uint64((total-1)/taskstore.MaxPageSize) * taskstore.MaxPageSize
}

// truncate shortens s to its first line and at most n runes
func truncate(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " …"
	}
	r := []rune(s)
	if n < 1 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// TaskListView pages through the task store
type TaskListView struct {
	tasks    TaskService
	settings Settings
	styles   *styles.Styles
	keys     keys.KeyMap

	width  int
	height int

	// Current page
	page     []models.Task
	total    int
	offset   uint64
	cursor   int
	loaded   bool
	selectID *uint64 // task to put the cursor on after the next load

	// Task creation/editing
	editing      bool
	editingNew   bool
	editID       uint64
	editDesc     textarea.Model
	editFocusIdx int // 0=description, 1=save

	// Go to id prompt
	goingTo   bool
	gotoInput textinput.Model

	// Read-only detail view
	viewingTask bool
	viewed      models.Task

	// Delete confirmation
	confirmingDelete bool
	deleteTargetID   uint64
	deleteTargetName string

	status      string
	statusIsErr bool

	showHelpPopup bool
}

// NewTaskListView creates a new task list view
func NewTaskListView(tasks TaskService, settings Settings) *TaskListView {
	editDesc := textarea.New()
	editDesc.Placeholder = "What needs doing?"
	editDesc.CharLimit = 2000
	editDesc.SetWidth(50)
	editDesc.SetHeight(4)
	editDesc.ShowLineNumbers = false

	gotoInput := textinput.New()
	gotoInput.Placeholder = "Task id"
	gotoInput.CharLimit = 20

	return &TaskListView{
		tasks:     tasks,
		settings:  settings,
		styles:    styles.NewStyles(),
		keys:      keys.DefaultKeyMap(),
		editDesc:  editDesc,
		gotoInput: gotoInput,
	}
}

type pageLoadedMsg struct {
	tasks  []models.Task
	total  int
	offset uint64
}

// Init restores the last viewed page
func (v *TaskListView) Init() tea.Cmd {
	var offset uint64
	if raw, err := v.settings.GetSetting(OffsetSetting); err == nil && raw != "" {
		if parsed, err := strconv.ParseUint(raw, 10, 64); err == nil {
			offset = parsed
		}
	}
	return v.loadPage(offset)
}

// loadPage fetches the page at offset. An empty page past the end falls
// back to the last page so deletes never strand the view.
func (v *TaskListView) loadPage(offset uint64) tea.Cmd {
	return func() tea.Msg {
		tasks := v.tasks.List(&offset, nil)
		total := v.tasks.Len()
		if len(tasks) == 0 && offset > 0 {
			offset = lastPageOffset(total)
			tasks = v.tasks.List(&offset, nil)
		}
		return pageLoadedMsg{tasks: tasks, total: total, offset: offset}
	}
}

func (v *TaskListView) setStatus(msg string) {
	v.status = msg
	v.statusIsErr = false
}

func (v *TaskListView) setError(msg string) {
	v.status = msg
	v.statusIsErr = true
}

// Update handles messages
func (v *TaskListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		contentWidth := styles.ContentWidth(v.width)
		v.editDesc.SetWidth(clamp(contentWidth-10, 20, 60))
		return v, nil

	case pageLoadedMsg:
		v.page = msg.tasks
		v.total = msg.total
		v.offset = msg.offset
		v.loaded = true
		if v.selectID != nil {
			for i, t := range v.page {
				if t.ID == *v.selectID {
					v.cursor = i
					break
				}
			}
			v.selectID = nil
		}
		if v.cursor >= len(v.page) {
			v.cursor = max(0, len(v.page)-1)
		}
		if err := v.settings.SetSetting(OffsetSetting, strconv.FormatUint(v.offset, 10)); err != nil {
			err = fmt.Errorf("save page offset: %w", err)
			return v, func() tea.Msg { return err }
		}
		return v, nil

	case tea.KeyMsg:
		// Handle help popup first - any key closes it
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}

		if v.confirmingDelete {
			return v.updateConfirmDelete(msg)
		}

		if v.editing {
			return v.updateEditing(msg)
		}

		if v.goingTo {
			return v.updateGoTo(msg)
		}

		if v.viewingTask {
			return v.updateViewingTask(msg)
		}

		return v.updateNormal(msg)
	}

	return v, nil
}

func (v *TaskListView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Up):
		if v.cursor > 0 {
			v.cursor--
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.cursor < len(v.page)-1 {
			v.cursor++
		}
		return v, nil

	case key.Matches(msg, v.keys.PrevPage):
		if v.offset == 0 {
			return v, nil
		}
		v.cursor = 0
		return v, v.loadPage(v.offset - min(v.offset, taskstore.MaxPageSize))

	case key.Matches(msg, v.keys.NextPage):
		if v.offset+uint64(len(v.page)) >= uint64(v.total) {
			return v, nil
		}
		v.cursor = 0
		return v, v.loadPage(v.offset + taskstore.MaxPageSize)

	case key.Matches(msg, v.keys.Enter):
		if len(v.page) > 0 {
			v.viewingTask = true
			v.viewed = v.page[v.cursor]
		}
		return v, nil

	case key.Matches(msg, v.keys.New):
		v.startNewTask()
		return v, textarea.Blink

	case key.Matches(msg, v.keys.Edit):
		if len(v.page) > 0 {
			v.startEditTask(v.page[v.cursor])
			return v, textarea.Blink
		}
		return v, nil

	case key.Matches(msg, v.keys.Delete):
		if len(v.page) > 0 {
			v.confirmDelete(v.page[v.cursor])
		}
		return v, nil

	case key.Matches(msg, v.keys.GoTo):
		v.goingTo = true
		v.gotoInput.Reset()
		v.gotoInput.Focus()
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil
	}

	return v, nil
}

func (v *TaskListView) confirmDelete(task models.Task) {
	v.confirmingDelete = true
	v.deleteTargetID = task.ID
	v.deleteTargetName = task.Description
}

func (v *TaskListView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		v.tasks.Delete(v.deleteTargetID)
		v.confirmingDelete = false
		v.viewingTask = false
		v.setStatus(fmt.Sprintf("Deleted task #%d", v.deleteTargetID))
		return v, v.loadPage(v.offset)
	case "n", "N", "esc":
		v.confirmingDelete = false
		return v, nil
	}
	return v, nil
}

func (v *TaskListView) updateViewingTask(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back), key.Matches(msg, v.keys.Enter):
		v.viewingTask = false
		return v, nil
	case key.Matches(msg, v.keys.Edit):
		v.viewingTask = false
		v.startEditTask(v.viewed)
		return v, textarea.Blink
	case key.Matches(msg, v.keys.Delete):
		v.confirmDelete(v.viewed)
		return v, nil
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	}
	return v, nil
}

func (v *TaskListView) updateGoTo(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.goingTo = false
		v.gotoInput.Blur()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		v.goingTo = false
		v.gotoInput.Blur()

		raw := strings.TrimPrefix(strings.TrimSpace(v.gotoInput.Value()), "#")
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			v.setError(fmt.Sprintf("%q is not a task id", raw))
			return v, nil
		}

		task, err := v.tasks.Get(id)
		if errors.Is(err, taskstore.ErrNotFound) {
			v.setError(fmt.Sprintf("Task #%d not found", id))
			return v, nil
		}
		if err != nil {
			v.setError(err.Error())
			return v, nil
		}

		v.viewingTask = true
		v.viewed = task
		return v, nil
	}

	var cmd tea.Cmd
	v.gotoInput, cmd = v.gotoInput.Update(msg)
	return v, cmd
}

func (v *TaskListView) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.editing = false
		return v, nil

	case key.Matches(msg, v.keys.Save):
		return v, v.saveTask()

	case key.Matches(msg, v.keys.Tab), msg.String() == "shift+tab":
		v.editFocusIdx = (v.editFocusIdx + 1) % 2
		v.updateEditFocus()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if v.editFocusIdx == 1 {
			return v, v.saveTask()
		}
		// Enter inside the textarea inserts a newline
	}

	if v.editFocusIdx != 0 {
		return v, nil
	}
	var cmd tea.Cmd
	v.editDesc, cmd = v.editDesc.Update(msg)
	return v, cmd
}

func (v *TaskListView) startNewTask() {
	v.editing = true
	v.editingNew = true
	v.editFocusIdx = 0
	v.editDesc.Reset()
	v.updateEditFocus()
}

func (v *TaskListView) startEditTask(task models.Task) {
	v.editing = true
	v.editingNew = false
	v.editID = task.ID
	v.editFocusIdx = 0
	v.editDesc.SetValue(task.Description)
	v.updateEditFocus()
}

func (v *TaskListView) updateEditFocus() {
	v.editDesc.Blur()
	if v.editFocusIdx == 0 {
		v.editDesc.Focus()
	}
}

func (v *TaskListView) saveTask() tea.Cmd {
	desc := strings.TrimSpace(v.editDesc.Value())
	v.editing = false

	if v.editingNew {
		task := v.tasks.Create(desc)
		v.selectID = &task.ID
		v.setStatus(fmt.Sprintf("Created task #%d", task.ID))
		return v.loadPage(lastPageOffset(v.tasks.Len()))
	}

	task, err := v.tasks.Update(v.editID, desc)
	if errors.Is(err, taskstore.ErrNotFound) {
		v.setError(fmt.Sprintf("Task #%d no longer exists", v.editID))
		return v.loadPage(v.offset)
	}
	if err != nil {
		v.setError(err.Error())
		return nil
	}
	if v.viewed.ID == task.ID {
		v.viewed = task
	}
	v.selectID = &task.ID
	v.setStatus(fmt.Sprintf("Updated task #%d", task.ID))
	return v.loadPage(v.offset)
}

// View renders the view
func (v *TaskListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	if v.confirmingDelete {
		return v.renderDeleteConfirm()
	}

	if v.editing {
		return v.renderEditForm()
	}

	if v.goingTo {
		return v.renderGoTo()
	}

	if v.viewingTask {
		return v.renderTaskView()
	}

	if !v.loaded {
		return v.styles.TitleMuted.Render("Loading...")
	}

	var b strings.Builder
	b.WriteString(v.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(v.renderTaskList())
	b.WriteString("\n")
	b.WriteString(v.renderStatus())
	b.WriteString(v.renderHelp())

	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *TaskListView) renderHeader() string {
	s := v.styles

	pages := max(1, (v.total+taskstore.MaxPageSize-1)/taskstore.MaxPageSize)
	current := int(v.offset/taskstore.MaxPageSize) + 1

	return lipgloss.JoinHorizontal(lipgloss.Bottom,
		s.Title.Render("Tasks"),
		"  ",
		s.TitleMuted.Render(fmt.Sprintf("page %d/%d • %d total", current, pages, v.total)),
	)
}

func (v *TaskListView) renderTaskList() string {
	s := v.styles

	if len(v.page) == 0 {
		return s.TitleMuted.Render("No tasks. Press 'n' to create one.")
	}

	contentWidth := styles.ContentWidth(v.width)
	width := max(contentWidth-4, 20)

	items := make([]string, 0, len(v.page))
	for i, task := range v.page {
		items = append(items, v.renderTaskItem(task, i == v.cursor, width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (v *TaskListView) renderTaskItem(task models.Task, selected bool, width int) string {
	s := v.styles

	id := fmt.Sprintf("#%d", task.ID)
	desc := task.Description
	if desc == "" {
		desc = "(no description)"
	}
	// Leave room for the id, a space and the item padding
	desc = truncate(desc, width-len(id)-5)

	style := s.ListItem
	if selected {
		style = s.ListSelected
	}
	return style.Width(width).Render(s.TaskID.Render(id) + " " + desc)
}

func (v *TaskListView) renderStatus() string {
	if v.status == "" {
		return ""
	}
	if v.statusIsErr {
		return v.styles.StatusError.Render(v.status) + "\n"
	}
	return v.styles.StatusBar.Render(v.status) + "\n"
}

func (v *TaskListView) renderEditForm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	descStyle := s.Input
	btnStyle := s.Button
	switch v.editFocusIdx {
	case 0:
		descStyle = s.InputFocused
	case 1:
		btnStyle = s.ButtonFocused
	}

	title := "New Task"
	if !v.editingNew {
		title = fmt.Sprintf("Edit Task #%d", v.editID)
	}

	form := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render(title),
		"",
		"Description:",
		descStyle.Render(v.editDesc.View()),
		"",
		btnStyle.Render(" Save "),
		"",
		s.TitleMuted.Render("Tab: next • Ctrl+S: save • Esc: cancel"),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		form,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *TaskListView) renderGoTo() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	inputWidth := clamp(contentWidth-10, 10, 30)

	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Go To Task"),
		"",
		s.InputFocused.Width(inputWidth).Render(v.gotoInput.View()),
		"",
		s.TitleMuted.Render("Enter: open • Esc: cancel"),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *TaskListView) renderTaskView() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	width := max(contentWidth-8, 20)

	desc := v.viewed.Description
	if desc == "" {
		desc = s.TitleMuted.Render("(no description)")
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render(fmt.Sprintf("Task #%d", v.viewed.ID)),
		"",
		lipgloss.NewStyle().Width(width).Render(desc),
		"",
		s.TitleMuted.Render("e: edit • d: delete • Esc: back"),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		s.Popup.Render(content),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *TaskListView) renderHelp() string {
	contentWidth := styles.ContentWidth(v.width)
	// At narrow widths, show hint to press ? for help
	if contentWidth > 0 && contentWidth < 50 {
		return v.styles.Help.Render(v.styles.HelpKey.Render("?") + " help")
	}

	return v.styles.Help.Render(
		fmt.Sprintf("%s view • %s new • %s edit • %s del • %s go to • %s page • %s quit",
			v.styles.HelpKey.Render("↵"),
			v.styles.HelpKey.Render("n"),
			v.styles.HelpKey.Render("e"),
			v.styles.HelpKey.Render("d"),
			v.styles.HelpKey.Render("g"),
			v.styles.HelpKey.Render("←/→"),
			v.styles.HelpKey.Render("q"),
		),
	)
}

func (v *TaskListView) renderHelpPopup() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	bindings := []key.Binding{
		v.keys.Enter, v.keys.New, v.keys.Edit, v.keys.Delete,
		v.keys.GoTo, v.keys.PrevPage, v.keys.NextPage, v.keys.Quit,
	}
	helpItems := make([]string, 0, len(bindings)+2)
	for _, b := range bindings {
		h := b.Help()
		helpItems = append(helpItems, fmt.Sprintf("%s  %s", s.HelpKey.Width(8).Render(h.Key), h.Desc))
	}
	helpItems = append(helpItems, "", s.TitleMuted.Render("Press any key to close"))

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{s.Title.Render("Keyboard Shortcuts"), ""}, helpItems...)...,
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		s.Popup.Render(content),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *TaskListView) renderDeleteConfirm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render("Delete Task?"),
		"",
		s.TitleMuted.Render(fmt.Sprintf("#%d %s", v.deleteTargetID, truncate(v.deleteTargetName, 40))),
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			s.ButtonPrimary.Render(" Y - Yes "),
			"  ",
			s.Button.Render(" N - No "),
		),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, v.width, v.height)
}
