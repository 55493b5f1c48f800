package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"task-service/internal/auth"
	"task-service/internal/domain"
	"task-service/internal/service"
)

const accessTokenCookie = "access_token"

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options tunes the transport layer. Zero values are usable.
type Options struct {
	CookieSecure   bool
	AllowedOrigins []string
	// AuthLimiter guards register and login. Nil disables limiting.
	AuthLimiter gin.HandlerFunc
	Logger      *logrus.Logger
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users    service.UserService
	tasks    service.TaskService
	sessions *auth.SessionResolver
	db       Pinger
	opts     Options
	logger   *logrus.Logger
}

func NewHandler(users service.UserService, tasks service.TaskService, sessions *auth.SessionResolver, db Pinger, opts Options) *Handler {
	useRequestFieldNames()

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		users:    users,
		tasks:    tasks,
		sessions: sessions,
		db:       db,
		opts:     opts,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestTimer(h.logger))
	if len(h.opts.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     h.opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Process-Time"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/health", h.health)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.limited(h.register)...)
		authGroup.POST("/login", h.limited(h.login)...)
		authGroup.GET("/me", h.requireSession, h.me)
		authGroup.POST("/logout", h.logout)
	}

	tasks := router.Group("/tasks", h.requireSession)
	{
		tasks.POST("/create", h.createTask)
		tasks.GET("/all", h.listTasks)
		tasks.GET("/:task_id", h.getTask)
		tasks.PATCH("/update", h.updateTask)
		tasks.DELETE("/delete", h.deleteTask)
	}
}

func (h *Handler) limited(handler gin.HandlerFunc) []gin.HandlerFunc {
	if h.opts.AuthLimiter == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{h.opts.AuthLimiter, handler}
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warnf("health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=5,max=15"`
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, validationError{err})
		return
	}

	if _, err := h.users.Register(c.Request.Context(), req.Email, req.Password); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, validationError{err})
		return
	}

	_, token, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, token, 0, "/", "", h.opts.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

func (h *Handler) me(c *gin.Context) {
	user := currentUser(c)
	c.JSON(http.StatusOK, UserResponse{ID: user.ID.String(), Email: user.Email})
}

func (h *Handler) logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, "", -1, "/", "", h.opts.CookieSecure, true)
	c.Status(http.StatusOK)
}

type createTaskRequest struct {
	Name        string  `form:"name" binding:"required,min=1,max=30"`
	Description *string `form:"description" binding:"omitempty,max=1000"`
}

func (h *Handler) createTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.writeError(c, validationError{err})
		return
	}

	task, err := h.tasks.CreateTask(c.Request.Context(), currentUser(c), req.Name, req.Description)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(*task))
}

type listTasksRequest struct {
	Page     int `form:"page,default=1" binding:"min=1"`
	PageSize int `form:"page_size,default=5" binding:"min=5,max=10"`
}

func (h *Handler) listTasks(c *gin.Context) {
	var req listTasksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.writeError(c, validationError{err})
		return
	}

	tasks, err := h.tasks.ListTasks(c.Request.Context(), currentUser(c), domain.Page{Number: req.Page, Size: req.PageSize})
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]TaskResponse, len(tasks))
	for i := range tasks {
		resp[i] = taskToResponse(tasks[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getTask(c *gin.Context) {
	id, err := parseTaskID(c.Param("task_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	task, err := h.tasks.GetTask(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(*task))
}

type updateTaskRequest struct {
	TaskID string `form:"task_id" binding:"required"`
	Status string `form:"status" binding:"required,oneof=WORKING COMPLETED"`
}

func (h *Handler) updateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.writeError(c, validationError{err})
		return
	}

	id, err := parseTaskID(req.TaskID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	task, err := h.tasks.UpdateStatus(c.Request.Context(), currentUser(c), id, domain.TaskStatus(req.Status))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskToResponse(*task))
}

type deleteTaskRequest struct {
	TaskID string `form:"task_id" binding:"required"`
}

func (h *Handler) deleteTask(c *gin.Context) {
	var req deleteTaskRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.writeError(c, validationError{err})
		return
	}

	id, err := parseTaskID(req.TaskID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if err := h.tasks.DeleteTask(c.Request.Context(), currentUser(c), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// parseTaskID treats an id that can never match a row like an unknown task.
func parseTaskID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.ErrTaskNotFound
	}
	return id, nil
}

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type TaskResponse struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Name        string            `json:"name"`
	Description *string           `json:"description"`
	Status      domain.TaskStatus `json:"status"`
}

func taskToResponse(task domain.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID.String(),
		UserID:      task.OwnerID.String(),
		Name:        task.Name,
		Description: task.Description,
		Status:      task.Status,
	}
}
