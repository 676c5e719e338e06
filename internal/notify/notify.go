package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"brickdesk/server/internal/models"
	"brickdesk/server/internal/normalize"
)

const telegramAPIBase = "https://api.telegram.org"

// Service pushes new-lead alerts to a Telegram chat so staff see inquiries
// without watching the dashboard. Disabled when no token is configured.
type Service struct {
	logger  *logrus.Logger
	client  *http.Client
	baseURL string
	token   string
	chatID  string
}

func NewService(logger *logrus.Logger, token, chatID string) *Service {
	return &Service{
		logger:  logger,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: telegramAPIBase,
		token:   token,
		chatID:  chatID,
	}
}

// SetBaseURL overrides the Telegram API endpoint (used by tests).
func (s *Service) SetBaseURL(url string) {
	s.baseURL = url
}

func (s *Service) Enabled() bool {
	return s.token != "" && s.chatID != ""
}

// NotifyNewLead sends an alert for a captured lead. The property is optional;
// when present the message includes its normalized price summary.
func (s *Service) NotifyNewLead(lead *models.Lead, property *models.Property) error {
	if !s.Enabled() {
		return nil
	}

	text := fmt.Sprintf("新客户咨询\n姓名: %s\n电话: %s", lead.Name, lead.Phone)
	if lead.Message != "" {
		text += "\n留言: " + lead.Message
	}
	if property != nil {
		text += fmt.Sprintf("\n\n房源: %s (%s %s)", property.Title, property.City, property.District)
		if price := normalize.DisplayPriceWan(property); price != nil {
			text += fmt.Sprintf("\n总价: %.0f万", *price)
		}
		if unit := normalize.UnitPriceYuanPerSqm(property); unit != nil {
			text += fmt.Sprintf("\n单价: %.0f元/平", *unit)
		}
	}

	payload := map[string]string{
		"chat_id": s.chatID,
		"text":    text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	resp, err := s.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		s.logger.WithError(err).Error("Failed to send lead notification")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("telegram returned status %d", resp.StatusCode)
		s.logger.WithError(err).Error("Failed to send lead notification")
		return err
	}

	s.logger.WithField("lead_id", lead.ID).Info("Sent new lead notification")
	return nil
}
