package notifier

// INotifier sends templated notifications to users and administrators.
type INotifier interface {
	NotifyFromTemplate(to string, subject string, templateName string, data any) error
}
