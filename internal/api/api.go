// Package api exposes the task store over HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gravityvi/Todo-app-cansiter/internal/logging"
	"github.com/gravityvi/Todo-app-cansiter/internal/models"
	"github.com/gravityvi/Todo-app-cansiter/internal/taskstore"
)

// TaskService is the store surface the handlers need.
type TaskService interface {
	Create(description string) models.Task
	Get(id uint64) (models.Task, error)
	List(offset, limit *uint64) []models.Task
	Update(id uint64, description string) (models.Task, error)
	Delete(id uint64)
	Len() int
}

type descriptionRequest struct {
	Description *string `json:"description" binding:"required"`
}

type listResponse struct {
	Tasks []models.Task `json:"tasks"`
	Total int           `json:"total"`
}

// Handler serves the task endpoints.
type Handler struct {
	tasks TaskService
	log   *logging.Logger
}

// NewHandler creates a Handler backed by tasks.
func NewHandler(tasks TaskService, log *logging.Logger) *Handler {
	return &Handler{tasks: tasks, log: log.WithComponent("api")}
}

// NewRouter builds a gin engine with the task routes registered.
func NewRouter(tasks TaskService, log *logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	NewHandler(tasks, log).Register(r)
	return r
}

// Register adds the task routes to r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/tasks", h.create)
	r.GET("/tasks", h.list)
	r.GET("/tasks/:id", h.get)
	r.PUT("/tasks/:id", h.update)
	r.DELETE("/tasks/:id", h.delete)
}

func (h *Handler) create(c *gin.Context) {
	var req descriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task := h.tasks.Create(*req.Description)
	h.log.Debug("task created", map[string]interface{}{"id": task.ID})
	c.JSON(http.StatusCreated, task)
}

func (h *Handler) list(c *gin.Context) {
	offset, err := optionalUint(c, "offset")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, err := optionalUint(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, listResponse{
		Tasks: h.tasks.List(offset, limit),
		Total: h.tasks.Len(),
	})
}

func (h *Handler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	task, err := h.tasks.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req descriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.tasks.Update(id, *req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	h.log.Debug("task updated", map[string]interface{}{"id": task.ID})
	c.JSON(http.StatusOK, task)
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	h.tasks.Delete(id)
	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return 0, false
	}
	return id, true
}

// optionalUint reads an unsigned query parameter; absent means nil.
func optionalUint(c *gin.Context, name string) (*uint64, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, errors.New("invalid " + name)
	}
	return &v, nil
}

func writeError(c *gin.Context, err error) {
	if errors.Is(err, taskstore.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// NewServer wraps the router in an http.Server listening on addr.
func NewServer(addr string, tasks TaskService, log *logging.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewRouter(tasks, log),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}
