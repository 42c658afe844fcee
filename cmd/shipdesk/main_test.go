package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/shipdesk-notify/internal/model"
)

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	assert.Equal(t, 0, run([]string{"--help"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Commands:")

	stdout.Reset()
	assert.Equal(t, 2, run([]string{"bogus"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `unknown command "bogus"`)
}

func TestRunSendRejectsEmptyMessage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"send", "--config", t.TempDir() + "/config.yaml", "--to", "cust-1"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "message is required")
}

func TestPrintNotification(t *testing.T) {
	recipient := "cust-1"
	n := model.Notification{
		ID:          "n1",
		RecipientID: &recipient,
		Category:    "payout",
		Body:        "Payout scheduled",
		CreatedAt:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local),
	}

	var buf bytes.Buffer
	printNotification(&buf, n)
	assert.Equal(t, "* 2024-05-01 09:00 [payout/direct] payout: Payout scheduled\n", buf.String())
}
