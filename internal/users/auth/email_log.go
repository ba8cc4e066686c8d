// Copyright (c) 2026 Sesame. All rights reserved.
// Author: minh.vuquang.dev@gmail.com

package auth

import (
	"context"
	"log/slog"
)

// LogEmailClient implements [EmailClient] by writing the message to the
// structured log instead of sending it.
//
// Intended for development and tests; production wires a real mail provider
// behind the same port. The body (which carries the 2FA code) is logged at
// debug level only.
type LogEmailClient struct {
	logger *slog.Logger
}

// NewLogEmailClient creates a logging email client.
func NewLogEmailClient(logger *slog.Logger) *LogEmailClient {
	return &LogEmailClient{logger: logger}
}

// SendEmail logs the outgoing message.
func (client *LogEmailClient) SendEmail(ctx context.Context, to, subject, body string) error {
	client.logger.InfoContext(ctx, "email_send_skipped",
		slog.String("to", to),
		slog.String("subject", subject),
	)
	client.logger.DebugContext(ctx, "email_body", slog.String("body", body))
	return nil
}
