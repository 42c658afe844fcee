package desktop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/shipdesk-notify/internal/model"
)

type recorder struct {
	titles   []string
	messages []string
	err      error
}

func (r *recorder) display(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return r.err
}

func TestNotifyRespectsPermission(t *testing.T) {
	rec := &recorder{}
	n := NewNotifier(model.PermissionDefault, zaptest.NewLogger(t))
	n.display = rec.display

	notif := model.Notification{ID: "n1", Category: "carrier", Body: "Carrier assigned"}

	n.Notify(notif)
	assert.Empty(t, rec.titles)

	n.SetPermission(model.PermissionDenied)
	n.Notify(notif)
	assert.Empty(t, rec.titles)

	n.SetPermission(model.PermissionGranted)
	assert.Equal(t, model.PermissionGranted, n.Permission())
	n.Notify(notif)
	assert.Equal(t, []string{"carrier"}, rec.titles)
	assert.Equal(t, []string{"Carrier assigned"}, rec.messages)
}

func TestNotifySwallowsDisplayErrors(t *testing.T) {
	rec := &recorder{err: errors.New("no notification daemon")}
	n := NewNotifier(model.PermissionGranted, zaptest.NewLogger(t))
	n.display = rec.display

	assert.NotPanics(t, func() {
		n.Notify(model.Notification{ID: "n1", Title: "Payout", Body: "Payroll sent"})
	})
	assert.Equal(t, []string{"Payout"}, rec.titles)
}
