package sendnotification

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medeiros-dev/reservation-notifier/internal/domain"
	"github.com/medeiros-dev/reservation-notifier/internal/observability/tracing"
	"github.com/medeiros-dev/reservation-notifier/pkg/logger"
	"go.uber.org/zap"
)

type SendNotificationHandler struct {
	useCase SendNotificationUseCase
}

func NewSendNotificationHandler(useCase SendNotificationUseCase) *SendNotificationHandler {
	return &SendNotificationHandler{useCase: useCase}
}

func (h *SendNotificationHandler) Handle(c *gin.Context) {
	var input SendNotificationInputDTO

	ctx, span := tracing.Tracer.Start(c.Request.Context(), "SendNotificationHandler.Handle")
	defer span.End()

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	output, err := h.useCase.Execute(ctx, input)
	switch {
	case errors.Is(err, domain.ErrEmptyRecipient), errors.Is(err, domain.ErrUnknownKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		logger.L().Error("Error dispatching notification",
			zap.String("userID", input.Recipient),
			zap.String("kind", input.Kind),
			logger.TraceField(ctx),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store notification"})
		return
	}

	c.JSON(http.StatusOK, output)
}
