package core

import (
	"helpdesk/internal/activity"
	"helpdesk/internal/models"

	"go.uber.org/zap"
)

func NewActivityLogger(config models.ActivityConfiguration) activity.IActivityLogger {
	switch config.Type {
	case "loki":
		return activity.NewLokiClient(config)
	case "filesystem":
		return activity.NewFilesystemClient(config)
	default:
		zap.L().Fatal("Unknown activity backend", zap.String("type", config.Type))
		return nil
	}
}
