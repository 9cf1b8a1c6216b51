package gateway

import "context"

// Outcome is the per-endpoint result of one push attempt.
type Outcome int

const (
	// Delivered means the gateway accepted the message for this endpoint.
	Delivered Outcome = iota
	// InvalidEndpoint means the endpoint is permanently undeliverable and
	// should be invalidated in the registry.
	InvalidEndpoint
	// TransientError means the attempt failed for a reason that may clear up
	// on retry (network, quota, upstream outage).
	TransientError
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case InvalidEndpoint:
		return "invalid_endpoint"
	case TransientError:
		return "transient_error"
	default:
		return "unknown"
	}
}

// PushGateway is the upstream push-delivery client. Implementations must be
// safe to retry on TransientError.
type PushGateway interface {
	SendPush(ctx context.Context, token, title, body string) (Outcome, error)
}
