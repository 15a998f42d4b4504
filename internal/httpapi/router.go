package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gopherchat/agent/internal/common"
	"github.com/gopherchat/agent/internal/config"
	"github.com/gopherchat/agent/internal/httpapi/handlers"
	"github.com/gopherchat/agent/internal/httpapi/middleware"
	"github.com/gopherchat/agent/internal/store/rabbitmq"
	"github.com/gopherchat/agent/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, pub *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, rds, pub)

	r.GET("/ping", h.Ping)

	// captcha
	r.POST("/captcha", h.SendCaptcha)

	// CRUD users register
	r.POST("/users", h.CreateUser)
	r.GET("/users/:id", h.GetUserByID)

	// auth
	r.POST("/login", h.Login)
	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	// agent chat (JWT required)
	authGroup.POST("/chat", h.ChatTurn)
	authGroup.POST("/chat/async", h.ChatTurnAsync)
	authGroup.GET("/chat/jobs/:job_id", h.GetChatJob)
	authGroup.GET("/chats", h.ListChats)
	authGroup.GET("/chats/:id", h.GetChat)
	return r
}
