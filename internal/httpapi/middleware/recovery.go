package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gopherchat/agent/internal/common"
)

// Recovery converts panics into the standard error envelope. Once a
// streamed response has started only the connection can be dropped.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("panic recovered path=%s err=%v", c.Request.URL.Path, r)
				if !c.Writer.Written() {
					common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
