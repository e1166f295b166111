package core

import (
	"helpdesk/internal/models"
	"helpdesk/internal/notifier"

	"go.uber.org/zap"
)

func NewNotifier(config models.NotifierConfiguration) notifier.INotifier {
	switch config.Type {
	case "smtp":
		return notifier.NewSMTPNotifier(*config.SMTP)
	case "filesystem":
		return notifier.NewFilesystemNotifier(*config.Filesystem)
	default:
		zap.L().Fatal("Unknown notifier backend", zap.String("type", config.Type))
		return nil
	}
}
