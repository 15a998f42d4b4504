package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gopherchat/agent/internal/agent"
	"github.com/gopherchat/agent/internal/ai"
	"github.com/gopherchat/agent/internal/chat"
	"github.com/gopherchat/agent/internal/config"
	"github.com/gopherchat/agent/internal/email"
	"github.com/gopherchat/agent/internal/search"
	"github.com/gopherchat/agent/internal/store/rabbitmq"
	"github.com/gopherchat/agent/internal/store/redisstore"
	"github.com/gopherchat/agent/internal/tools"
)

// JobPublisher hands queued turns to the broker. Nil means the broker
// is unavailable and async chat is disabled.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Redis       *redisstore.Store
	Rabbit      JobPublisher
	Registry    *ai.Registry
	SMTPSetting email.SMTPConfig
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, pub *rabbitmq.Publisher) *Handler {
	var rb JobPublisher
	if pub != nil {
		rb = pub
	}
	reg := ai.NewRegistry()
	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, m, cfg.Temperature), nil
	})
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m, cfg.Temperature), nil
	})

	return &Handler{
		DB:       db,
		Cfg:      cfg,
		Redis:    rds,
		Rabbit:   rb,
		Registry: reg,
		SMTPSetting: email.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		},
	}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(200, gin.H{"message": "pong"})
}

// newToolset builds the tool roster for one request. The roster is
// owned by the request and never shared.
func (h *Handler) newToolset() *tools.Registry {
	roster := tools.NewRegistry()
	roster.Register(tools.NewCalculator())
	if h.Cfg.BingSearchAPIKey != "" {
		mgr := search.NewManager("bing")
		mgr.Register(search.NewBing(h.Cfg.BingSearchAPIKey, ""))
		roster.Register(search.NewTool(mgr))
	}
	return roster
}

// newExecutor wires a fresh reasoning loop with the recorder attached.
func (h *Handler) newExecutor(ctx context.Context) (*agent.Executor, error) {
	provider, err := h.Registry.Get(ctx, h.Cfg.AIProvider, "")
	if err != nil {
		return nil, err
	}
	sp, ok := provider.(agent.StreamProvider)
	if !ok {
		return nil, fmt.Errorf("provider %q does not support streaming", h.Cfg.AIProvider)
	}
	exec := agent.NewExecutor(sp, h.newToolset(), h.Cfg.AgentSystemTemplate, h.Cfg.AgentMaxIterations)
	exec.OnCompletion(chat.NewRecorder(h.Redis))
	return exec, nil
}
