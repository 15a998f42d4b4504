package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gopherchat/agent/internal/agent"
	"github.com/gopherchat/agent/internal/ai"
	"github.com/gopherchat/agent/internal/chat"
	"github.com/gopherchat/agent/internal/common"
	"github.com/gopherchat/agent/internal/httpapi/middleware"
)

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

type apiMessage struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content"`
}

type chatTurnReq struct {
	ID       string       `json:"id"`
	Messages []apiMessage `json:"messages" binding:"required,min=1"`
}

func (r chatTurnReq) toRequest(userID uint64) agent.Request {
	msgs := make([]ai.Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		msgs = append(msgs, ai.Message{Role: m.Role, Content: m.Content})
	}
	return agent.Request{
		ConversationID: r.ID,
		UserID:         strconv.FormatUint(userID, 10),
		Messages:       msgs,
	}
}

// ChatTurn answers one turn, streaming the final answer as plain text
// chunks while the loop runs. The status line is only committed once
// the first fragment arrives, so pre-stream failures still get a clean
// error response.
func (h *Handler) ChatTurn(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req chatTurnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	exec, err := h.newExecutor(c.Request.Context())
	if err != nil {
		log.Printf("[ChatTurn] executor setup failed uid=%d err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	ctx := c.Request.Context()
	events, errs := exec.Execute(ctx, req.toRequest(uid))
	chunks := agent.OutputText(events)

	flusher, canFlush := c.Writer.(http.Flusher)
	if !canFlush {
		common.Fail(c, http.StatusInternalServerError, 50003, "streaming unsupported")
		return
	}

	streaming := false
	for {
		select {
		case chunk, open := <-chunks:
			if !open {
				// trace exhausted; surface a terminal failure only if
				// nothing was streamed yet
				if err := <-errs; err != nil {
					log.Printf("[ChatTurn] uid=%d conversation=%q err=%v", uid, req.ID, err)
					if !streaming {
						common.Fail(c, http.StatusBadGateway, 50201, "generation failed")
					}
				}
				return
			}
			if !streaming {
				c.Header("Content-Type", "text/plain; charset=utf-8")
				c.Header("Cache-Control", "no-cache")
				c.Header("X-Accel-Buffering", "no") // disable proxy buffering
				c.Status(http.StatusOK)
				streaming = true
			}
			if _, err := io.WriteString(c.Writer, chunk); err != nil {
				return
			}
			flusher.Flush()

		case <-ctx.Done():
			return
		}
	}
}

// ChatTurnAsync queues a turn for the worker and returns a job id.
func (h *Handler) ChatTurnAsync(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	if h.Rabbit == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async chat unavailable")
		return
	}

	var req chatTurnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	// resolve the conversation id up front so the job row can point at
	// the record the worker will write
	conversationID := req.ID
	if conversationID == "" {
		var err error
		conversationID, err = common.NewULID()
		if err != nil {
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
			return
		}
	}

	payload := chat.JobPayload{ConversationID: conversationID}
	for _, m := range req.Messages {
		payload.Messages = append(payload.Messages, ai.Message{Role: m.Role, Content: m.Content})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	jobID, err := common.NewULID()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	j := &chat.Job{
		ID:             jobID,
		UserID:         uid,
		Payload:        string(body),
		IdempotencyKey: idempoKeyPtr,
		Status:         chat.JobQueued,
	}

	repo := chat.NewRepo(h.DB)
	j, created, err := repo.CreateJobOrGetExisting(c.Request.Context(), j)
	if err != nil {
		log.Printf("[ChatTurnAsync] create job failed uid=%d err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	if created {
		if err := h.Rabbit.PublishJob(c.Request.Context(), j.ID); err != nil {
			log.Printf("[ChatTurnAsync] publish failed uid=%d job_id=%s err=%v", uid, j.ID, err)
			// nothing will consume the row; a replay must see it failed
			if mErr := repo.MarkJobFailed(c.Request.Context(), j.ID, "enqueue failed: "+err.Error()); mErr != nil {
				log.Printf("[ChatTurnAsync] mark failed uid=%d job_id=%s err=%v", uid, j.ID, mErr)
			}
			common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	} else {
		// idempotent replay: answer with the original job's conversation
		var prior chat.JobPayload
		if err := json.Unmarshal([]byte(j.Payload), &prior); err == nil && prior.ConversationID != "" {
			conversationID = prior.ConversationID
		}
	}

	common.OK(c, gin.H{"job_id": j.ID, "conversation_id": conversationID})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	repo := chat.NewRepo(h.DB)
	j, err := repo.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if j.UserID != uid {
		// hide existence
		common.Fail(c, http.StatusNotFound, 40402, "job not found")
		return
	}

	common.OK(c, gin.H{
		"job": gin.H{
			"id":         j.ID,
			"status":     j.Status,
			"chat_id":    j.ChatID,
			"error":      j.Error,
			"created_at": j.CreatedAt,
			"updated_at": j.UpdatedAt,
		},
	})
}

// ListChats returns the caller's conversations, most recent first.
func (h *Handler) ListChats(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	userID := strconv.FormatUint(uid, 10)

	ids, err := h.Redis.ListChatIDs(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to list chats")
		return
	}

	summaries := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		fields, err := h.Redis.GetChat(c.Request.Context(), id)
		if err != nil || len(fields) == 0 {
			continue
		}
		rec, err := chat.RecordFromHash(fields)
		if err != nil {
			continue
		}
		summaries = append(summaries, gin.H{
			"id":        rec.ID,
			"title":     rec.Title,
			"createdAt": rec.CreatedAt,
			"path":      rec.Path,
		})
	}

	common.OK(c, gin.H{"chats": summaries})
}

func (h *Handler) GetChat(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	id := c.Param("id")
	fields, err := h.Redis.GetChat(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to load chat")
		return
	}
	rec, err := chat.RecordFromHash(fields)
	if err != nil {
		common.Fail(c, http.StatusNotFound, 40403, "chat not found")
		return
	}
	if rec.UserID != strconv.FormatUint(uid, 10) {
		// hide existence
		common.Fail(c, http.StatusNotFound, 40403, "chat not found")
		return
	}

	common.OK(c, gin.H{"chat": rec})
}
