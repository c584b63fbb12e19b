package sender

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/vpn-storefront/internal/config"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/mailapi"
	"github.com/magabrotheeeer/vpn-storefront/internal/lib/smtp"
)

func TestNewMailer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	assert.IsType(t, &smtp.Mailer{}, NewMailer(config.Mail{Provider: "smtp", From: "noreply@example.com"}, logger))
	assert.IsType(t, &mailapi.Client{}, NewMailer(config.Mail{Provider: "api", APIURL: "https://mail.example.com"}, logger))
	assert.IsType(t, &mailapi.Client{}, NewMailer(config.Mail{}, logger))
}
