// Package backendtest runs an in-memory pantry backend for tests.
package backendtest

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/suPer8Hu/pantry-assistant/internal/models"
)

// Route names used by Count, Fail and Block.
const (
	RouteLogin  = "login"
	RouteSignup = "signup"
	RouteList   = "list"
	RouteAdd    = "add"
	RouteDelete = "delete"
	RouteChat   = "chat"
)

type account struct {
	identity models.Identity
	password string
}

type row struct {
	UserID         string    `json:"user_id"`
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Quantity       int       `json:"quantity"`
	ExpirationDate *string   `json:"expiration_date"`
	CreatedAt      time.Time `json:"created_at"`
}

type Server struct {
	*httptest.Server

	mu         sync.Mutex
	accounts   map[string]account
	rows       []row
	calls      map[string]int
	failures   map[string]int
	blocks     map[string]chan struct{}
	requestIDs []string
	chatReply  func(userID, message string) string
}

func New() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		accounts: make(map[string]account),
		calls:    make(map[string]int),
		failures: make(map[string]int),
		blocks:   make(map[string]chan struct{}),
		chatReply: func(userID, message string) string {
			return "Try an omelette with what you have."
		},
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), s.recordRequestID)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})

	r.POST("/auth/signup", s.hook(RouteSignup), s.signup)
	r.POST("/auth/login", s.hook(RouteLogin), s.login)
	r.GET("/inventory/:user_id", s.hook(RouteList), s.listInventory)
	r.POST("/inventory", s.hook(RouteAdd), s.addInventory)
	r.DELETE("/inventory/:id", s.hook(RouteDelete), s.deleteItem)
	r.POST("/chat", s.hook(RouteChat), s.chat)
	return r
}

func (s *Server) recordRequestID(c *gin.Context) {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		s.mu.Lock()
		s.requestIDs = append(s.requestIDs, id)
		s.mu.Unlock()
	}
	c.Next()
}

// hook counts the call, then applies any configured block or failure.
func (s *Server) hook(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		s.calls[route]++
		block := s.blocks[route]
		status := s.failures[route]
		s.mu.Unlock()

		if block != nil {
			select {
			case <-block:
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		if status != 0 {
			c.AbortWithStatusJSON(status, gin.H{"detail": "injected failure"})
			return
		}
		c.Next()
	}
}

type authReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) signup(c *gin.Context) {
	var req authReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "email and password required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[req.Email]; exists {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "The user with the provided email already exists (EMAIL_EXISTS)."})
		return
	}
	id := models.Identity{ID: uuid.NewString(), Email: req.Email}
	s.accounts[req.Email] = account{identity: id, password: req.Password}
	c.JSON(http.StatusOK, gin.H{"user": id})
}

func (s *Server) login(c *gin.Context) {
	var req authReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid credentials"})
		return
	}
	s.mu.Lock()
	acct, ok := s.accounts[req.Email]
	s.mu.Unlock()
	if !ok || acct.password != req.Password {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": acct.identity})
}

func (s *Server) listInventory(c *gin.Context) {
	userID := c.Param("user_id")
	s.mu.Lock()
	out := make([]row, 0)
	for _, r := range s.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

type addReq struct {
	UserID         string  `json:"user_id" binding:"required"`
	Name           string  `json:"name" binding:"required"`
	Quantity       *int    `json:"quantity" binding:"required"`
	ExpirationDate *string `json:"expiration_date"`
}

func (s *Server) addInventory(c *gin.Context) {
	var req addReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": err.Error()}}})
		return
	}
	id := s.insert(req.UserID, req.Name, *req.Quantity, req.ExpirationDate)
	c.JSON(http.StatusOK, gin.H{"id": id, "message": "Item added"})
}

func (s *Server) deleteItem(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	kept := s.rows[:0]
	for _, r := range s.rows {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.rows = kept
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted"})
}

type chatReq struct {
	UserID  string `json:"user_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

func (s *Server) chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": err.Error()}}})
		return
	}
	s.mu.Lock()
	reply := s.chatReply
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"response": reply(req.UserID, req.Message)})
}

func (s *Server) insert(userID, name string, quantity int, expiration *string) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.rows = append(s.rows, row{
		UserID:         userID,
		ID:             id,
		Name:           name,
		Quantity:       quantity,
		ExpirationDate: expiration,
		CreatedAt:      time.Now(),
	})
	s.mu.Unlock()
	return id
}

// Register creates an account directly, bypassing the signup route.
func (s *Server) Register(email, password string) models.Identity {
	id := models.Identity{ID: uuid.NewString(), Email: email}
	s.mu.Lock()
	s.accounts[email] = account{identity: id, password: password}
	s.mu.Unlock()
	return id
}

// Seed inserts an item for userID. An empty expiration is stored as null.
func (s *Server) Seed(userID, name string, quantity int, expiration string) string {
	var exp *string
	if expiration != "" {
		exp = &expiration
	}
	return s.insert(userID, name, quantity, exp)
}

// Rows returns the sorted item names stored for userID.
func (s *Server) Rows(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, r := range s.rows {
		if r.UserID == userID {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *Server) Count(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Fail makes route answer with status until reset with status 0.
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, route)
		return
	}
	s.failures[route] = status
}

// Block holds requests to route until the returned release func is called.
func (s *Server) Block(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.blocks[route] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.blocks[route] == ch {
				delete(s.blocks, route)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Server) SetChatReply(fn func(userID, message string) string) {
	s.mu.Lock()
	s.chatReply = fn
	s.mu.Unlock()
}

func (s *Server) RequestIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requestIDs...)
}
