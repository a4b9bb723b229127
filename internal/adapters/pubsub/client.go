package pubsub

import (
	"context"
	"strings"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// NewClient creates a Pub/Sub client. Application Default Credentials are
// used unless credentialsJSON is set.
func NewClient(ctx context.Context, projectID, credentialsJSON string) (*pubsub.Client, error) {
	if strings.TrimSpace(credentialsJSON) != "" {
		return pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	return pubsub.NewClient(ctx, projectID)
}
