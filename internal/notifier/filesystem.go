package notifier

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"helpdesk/internal/models"

	"go.uber.org/zap"
)

// FilesystemNotifier writes each notification as a JSON document to a local
// directory instead of mailing it. Meant for development setups without an
// SMTP relay; the directory doubles as an outbox humans can inspect.
type FilesystemNotifier struct {
	directory string
}

func NewFilesystemNotifier(config models.FilesystemNotifierConfiguration) *FilesystemNotifier {
	if err := os.MkdirAll(config.Directory, 0750); err != nil {
		zap.L().Fatal("Failed to create notification directory", zap.Error(err))
	}
	return &FilesystemNotifier{directory: config.Directory}
}

// NotifyFromTemplate records the notification that would have been sent,
// template arguments included.
func (n *FilesystemNotifier) NotifyFromTemplate(
	to string,
	subject string,
	templateName string,
	data any,
) error {
	notification := map[string]any{
		"to":            to,
		"subject":       subject,
		"template_name": templateName,
		"args":          data,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.MarshalIndent(notification, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	filename := fmt.Sprintf("%d_%s.json", time.Now().UnixNano(), templateName)
	path := filepath.Join(n.directory, filename)

	if err = os.WriteFile(path, payload, 0600); err != nil {
		return fmt.Errorf("failed to write notification file: %w", err)
	}

	zap.L().Info("Notification written to disk",
		zap.String("path", path),
		zap.String("to", to),
		zap.String("template", templateName),
	)

	return nil
}
