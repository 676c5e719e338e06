package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brickdesk/server/internal/models"
)

func fptr(v float64) *float64 { return &v }

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNotifyNewLead_MessageCarriesNormalizedPrices(t *testing.T) {
	var payload struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botbot-token/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewService(newTestLogger(), "bot-token", "chat-42")
	svc.SetBaseURL(server.URL)
	require.True(t, svc.Enabled())

	lead := &models.Lead{ID: 7, Name: "王先生", Phone: "13800000000", Message: "想约看房"}
	property := &models.Property{
		Title:        "滨江一品 精装三房",
		City:         "杭州",
		District:     "滨江",
		Status:       "已成交",
		SoldPriceWan: fptr(650),
		BuildArea:    fptr(100),
	}
	require.NoError(t, svc.NotifyNewLead(lead, property))

	assert.Equal(t, "chat-42", payload.ChatID)
	assert.Contains(t, payload.Text, "王先生")
	assert.Contains(t, payload.Text, "13800000000")
	assert.Contains(t, payload.Text, "想约看房")
	assert.Contains(t, payload.Text, "滨江一品 精装三房")
	// Prices come from the normalizer: sold price displayed, unit price derived.
	assert.Contains(t, payload.Text, "总价: 650万")
	assert.Contains(t, payload.Text, "单价: 65000元/平")
}

func TestNotifyNewLead_WithoutProperty(t *testing.T) {
	var text string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		text = payload.Text
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewService(newTestLogger(), "bot-token", "chat-42")
	svc.SetBaseURL(server.URL)

	require.NoError(t, svc.NotifyNewLead(&models.Lead{Name: "李女士", Phone: "13900000000"}, nil))
	assert.Contains(t, text, "李女士")
	assert.NotContains(t, text, "房源")
}

func TestNotifyNewLead_DisabledSendsNothing(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	svc := NewService(newTestLogger(), "", "")
	svc.SetBaseURL(server.URL)
	require.False(t, svc.Enabled())

	require.NoError(t, svc.NotifyNewLead(&models.Lead{Name: "匿名", Phone: "000"}, nil))
	assert.Equal(t, int32(0), calls.Load())
}

func TestNotifyNewLead_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc := NewService(newTestLogger(), "bot-token", "chat-42")
	svc.SetBaseURL(server.URL)

	err := svc.NotifyNewLead(&models.Lead{Name: "王先生", Phone: "13800000000"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}