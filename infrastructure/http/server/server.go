// Package server exposes the services over REST and a WebSocket endpoint.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"syncx/auth"
	"syncx/observability"
	"syncx/services"

	"github.com/gin-gonic/gin"
)

type Dependencies struct {
	Auth     *auth.Authenticator
	Accounts services.IAuthService
	Profiles services.IUserService
	Friends  services.IFriendService
	Chats    services.IChatService
	Messages services.IMessageService
	Admin    services.IAdminService
	Socket   services.ISocketService
	Metrics  *observability.Metrics
}

type Options struct {
	// UploadsDir is served under /uploads when blobs are kept on disk.
	UploadsDir string
	// AllowedOrigins feeds CORS and the socket origin check.
	AllowedOrigins []string
	// InsecureSkipVerify disables the socket origin check, for local development.
	InsecureSkipVerify bool
	SecureCookies      bool
	TokenDuration      time.Duration
	// ConnectionBuffer is the number of events a socket can lag behind.
	ConnectionBuffer int
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	// MaxUploadBytes bounds a single uploaded file.
	MaxUploadBytes int64
}

type Server struct {
	log    *slog.Logger
	deps   Dependencies
	opts   Options
	engine *gin.Engine
}

func New(log *slog.Logger, deps Dependencies, opts Options) *Server {
	if opts.ConnectionBuffer <= 0 {
		opts.ConnectionBuffer = 64
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 5 << 20
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{log: log, deps: deps, opts: opts, engine: gin.New()}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	r := s.engine
	r.Use(gin.Recovery(), requestLogger(s.log), cors(s.opts.AllowedOrigins))
	r.MaxMultipartMemory = int64(services.MaxAttachments) * s.opts.MaxUploadBytes

	if s.opts.UploadsDir != "" {
		r.Static("/uploads", s.opts.UploadsDir)
	}
	r.GET("/socket", s.socket)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) { ok(c, http.StatusOK, gin.H{"status": "up"}) })

	user := api.Group("/user")
	user.POST("/new", s.register)
	user.POST("/login", s.login)
	user.GET("/logout", s.logout)

	me := user.Group("", auth.RequireUser(s.deps.Auth, fail))
	me.GET("/me", s.me)
	me.PUT("/update", s.updateProfile)
	me.GET("/search", s.searchUsers)
	me.PUT("/sendrequest", s.sendRequest)
	me.PUT("/acceptrequest", s.acceptRequest)
	me.GET("/notifications", s.notifications)
	me.GET("/friends", s.friends)
	me.PUT("/removefriend", s.removeFriend)

	chats := api.Group("/chat", auth.RequireUser(s.deps.Auth, fail))
	chats.POST("/new", s.newGroup)
	chats.GET("/my", s.myChats)
	chats.GET("/my/groups", s.myGroups)
	chats.PUT("/addmembers", s.addMembers)
	chats.PUT("/removemember", s.removeMember)
	chats.DELETE("/group/:chatId/members/:memberId", s.removeMember)
	chats.POST("/assign-admin", s.assignAdmin)
	chats.POST("/remove-admin/:chatId", s.removeAdmin)
	chats.PUT("/edit-group/:chatId", s.editGroup)
	chats.DELETE("/leave/:chatId", s.leaveGroup)
	chats.DELETE("/group/:chatId", s.deleteGroup)
	chats.POST("/message", s.sendAttachments)
	chats.GET("/message/:id", s.messages)
	chats.DELETE("/message/:chatId/:messageId", s.deleteMessage)
	chats.GET("/:id", s.chatDetails)
	chats.PUT("/:id", s.renameGroup)
	chats.DELETE("/:id", s.deleteChat)

	admin := api.Group("/admin")
	admin.POST("/verify", s.adminVerify)
	admin.GET("/logout", s.adminLogout)

	guarded := admin.Group("", auth.RequireAdmin(s.deps.Auth, fail))
	guarded.GET("/", func(c *gin.Context) { ok(c, http.StatusOK, gin.H{"admin": true}) })
	guarded.GET("/users", s.adminUsers)
	guarded.GET("/chats", s.adminChats)
	guarded.GET("/messages", s.adminMessages)
	guarded.GET("/stats", s.adminStats)
	guarded.GET("/runtime", s.adminRuntime)
	guarded.PUT("/users/:id", s.adminUpdateUser)
	guarded.DELETE("/users/:id", s.adminDeleteUser)
}

func (s *Server) setCookie(c *gin.Context, name, value string, maxAge time.Duration) {
	c.SetSameSite(http.SameSiteNoneMode)
	if !s.opts.SecureCookies {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(name, value, int(maxAge.Seconds()), "/", "", s.opts.SecureCookies, true)
}

func (s *Server) clearCookie(c *gin.Context, name string) {
	c.SetCookie(name, "", -1, "/", "", s.opts.SecureCookies, true)
}
