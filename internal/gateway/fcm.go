package gateway

import (
	"context"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// MessagingClient is the subset of the Firebase messaging API we call. Keeping
// it as an interface lets tests substitute a mock client.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMGateway delivers pushes through Firebase Cloud Messaging and classifies
// SDK errors into outcomes.
type FCMGateway struct {
	client MessagingClient
	logger *zap.SugaredLogger
}

// NewFCMGateway wraps a messaging client. *messaging.Client satisfies
// MessagingClient directly.
func NewFCMGateway(client MessagingClient, logger *zap.SugaredLogger) *FCMGateway {
	return &FCMGateway{client: client, logger: logger}
}

func (g *FCMGateway) SendPush(ctx context.Context, token, title, body string) (Outcome, error) {
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				ChannelID: "broadcasts",
				Priority:  messaging.PriorityHigh,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  body,
					},
					Sound: "default",
				},
			},
		},
	}

	_, err := g.client.Send(ctx, msg)
	if err == nil {
		return Delivered, nil
	}

	// The token itself is garbage: unregistered, or rejected as malformed.
	if messaging.IsRegistrationTokenNotRegistered(err) || messaging.IsInvalidArgument(err) {
		g.logger.Infow("fcm rejected endpoint", "outcome", InvalidEndpoint.String(), "error", err)
		return InvalidEndpoint, err
	}

	// Everything else (unavailable, internal, quota, transport) is retryable.
	return TransientError, err
}
