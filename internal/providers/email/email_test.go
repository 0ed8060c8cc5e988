package email

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRenderConsumptionNotice(t *testing.T) {
	limit, excess := 100.0, 20.0
	body, err := Render("consumption_notice", ConsumptionNotice{
		BrandName:      "North Hall",
		StudentName:    "Jane <Doe>",
		RoomNumber:     "101",
		Period:         "2025-01",
		ConsumptionKwh: 120,
		LimitKwh:       &limit,
		ExcessKwh:      &excess,
		ExceedsLimit:   true,
		SupportEmail:   "help@example.com",
	})
	require.NoError(t, err)

	assert.Contains(t, body, "exceeded the monthly allowance")
	assert.Contains(t, body, "120.00 kWh")
	assert.Contains(t, body, "20.00 kWh")
	assert.Contains(t, body, "Jane &lt;Doe&gt;")
	assert.NotContains(t, body, "student portal")
}

func TestRenderWithoutLimit(t *testing.T) {
	body, err := Render("consumption_notice", ConsumptionNotice{
		StudentName:    "Jane",
		RoomNumber:     "101",
		Period:         "2025-02",
		ConsumptionKwh: 80,
	})
	require.NoError(t, err)
	assert.NotContains(t, body, "Monthly limit")
	assert.NotContains(t, body, "Excess")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render("missing", nil)
	assert.Error(t, err)
}

func TestBuildMessageStripsHeaderInjection(t *testing.T) {
	msg := string(buildMessage("from@example.com", []string{"a@example.com"}, "hi\r\nBcc: x@example.com", "<p>x</p>"))
	headers := msg[:strings.Index(msg, "\r\n\r\n")]
	assert.NotContains(t, headers, "\r\nBcc:")
	assert.Contains(t, msg, "Subject: hi  Bcc: x@example.com\r\n")
}

func TestSMTPSendFailsWithoutServer(t *testing.T) {
	p := NewSMTP(Config{Host: "127.0.0.1", Port: 1, From: "from@example.com"})
	res := p.Send(context.Background(), []string{"a@example.com"}, "s", "b")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)

	res = p.Send(context.Background(), nil, "s", "b")
	assert.False(t, res.Success)
}

func TestNoOpSucceeds(t *testing.T) {
	res := NewNoOp(zap.NewNop()).SendTemplate(context.Background(), []string{"a@example.com"}, "s", "consumption_notice", ConsumptionNotice{})
	assert.True(t, res.Success)
}
