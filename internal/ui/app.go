package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gravityvi/Todo-app-cansiter/internal/logging"
	"github.com/gravityvi/Todo-app-cansiter/internal/ui/views"
)

// App is the root bubbletea model
type App struct {
	taskList *views.TaskListView
	log      *logging.Logger
	width    int
	height   int
}

// Creates a new application over the given store and settings
func NewApp(tasks views.TaskService, settings views.Settings, log *logging.Logger) *App {
	return &App{
		taskList: views.NewTaskListView(tasks, settings),
		log:      log.WithComponent("ui"),
	}
}

func (a *App) Init() tea.Cmd {
	return a.taskList.Init()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case error:
		// Commands report failures as plain errors; keep the UI running
		a.log.Error("command failed", map[string]interface{}{"error": msg})
		return a, nil
	}

	_, cmd := a.taskList.Update(msg)
	return a, cmd
}

func (a *App) View() string {
	return a.taskList.View()
}
