package gateway

import (
	"net/http"

	"github.com/example/flowershop/pkg/apperror"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const msgInvalidBody = "Dữ liệu không hợp lệ"

// respondError writes err as {"message": ...}. Server errors are logged with
// their cause; the client only sees the generic message.
func (g *Gateway) respondError(c *gin.Context, err error) {
	status := apperror.StatusOf(err)
	if status >= http.StatusInternalServerError {
		g.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}
	writeError(c, err)
}

func writeError(c *gin.Context, err error) {
	c.JSON(apperror.StatusOf(err), gin.H{"message": apperror.MessageOf(err)})
}

func badBody() error {
	return apperror.BadRequest(msgInvalidBody)
}
