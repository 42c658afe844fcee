package desktop

import (
	"sync"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/nhle/shipdesk-notify/internal/model"
)

// displayFunc shows one OS notification. Replaced in tests.
type displayFunc func(title, message string) error

func beeepDisplay(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Notifier shows native OS notifications once the user has granted
// permission. Nothing is shown while permission is default or denied.
type Notifier struct {
	mu         sync.Mutex
	permission model.DesktopPermission
	display    displayFunc
	logger     *zap.Logger
}

// NewNotifier returns a Notifier starting from the stored permission.
func NewNotifier(permission model.DesktopPermission, logger *zap.Logger) *Notifier {
	return &Notifier{
		permission: permission,
		display:    beeepDisplay,
		logger:     logger,
	}
}

// Permission returns the current permission state.
func (n *Notifier) Permission() model.DesktopPermission {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.permission
}

// SetPermission records the user's answer to the permission prompt.
func (n *Notifier) SetPermission(p model.DesktopPermission) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.permission = p
}

// Notify displays notif if permission was granted. Display failures are
// logged; they never reach the caller.
func (n *Notifier) Notify(notif model.Notification) {
	n.mu.Lock()
	granted := n.permission == model.PermissionGranted
	display := n.display
	n.mu.Unlock()

	if !granted {
		return
	}

	if err := display(notif.DisplayTitle(), notif.Body); err != nil {
		n.logger.Warn("desktop notification failed",
			zap.String("notification_id", notif.ID),
			zap.Error(err),
		)
	}
}
