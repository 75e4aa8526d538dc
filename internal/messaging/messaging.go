// Package messaging delivers push notifications to users through a gateway keyed by
// each user's delivery token.
package messaging

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Gateway sends one notification to one delivery token.
type Gateway interface {
	Send(ctx context.Context, token string, n Notification) error
}

type TokenStore interface {
	ListByUsers(ctx context.Context, userIDs []string) (map[string]string, error)
}

// Notifier resolves user ids to tokens and sends through a Gateway. Delivery is best
// effort: failures are logged and returned, never retried.
type Notifier struct {
	logger  *zap.SugaredLogger
	tokens  TokenStore
	gateway Gateway
}

func NewNotifier(logger *zap.SugaredLogger, tokens TokenStore, gateway Gateway) *Notifier {
	return &Notifier{logger: logger, tokens: tokens, gateway: gateway}
}

// Notify sends n to every user in userIDs that has a token. Users without one are
// skipped. The returned error aggregates the failed deliveries.
func (n *Notifier) Notify(ctx context.Context, userIDs []string, note Notification) error {
	if len(userIDs) == 0 {
		return nil
	}

	tokens, err := n.tokens.ListByUsers(ctx, userIDs)
	if err != nil {
		n.logger.Errorw("failed to load delivery tokens", "users", len(userIDs), "err", err)
		return fmt.Errorf("load tokens: %w", err)
	}

	var result *multierror.Error
	for _, userID := range userIDs {
		token, ok := tokens[userID]
		if !ok {
			n.logger.Debugw("no delivery token, skipping", "userID", userID)
			continue
		}
		if err := n.gateway.Send(ctx, token, note); err != nil {
			n.logger.Warnw("notification not delivered", "userID", userID, "title", note.Title, "err", err)
			result = multierror.Append(result, fmt.Errorf("user %s: %w", userID, err))
		}
	}
	return result.ErrorOrNil()
}
