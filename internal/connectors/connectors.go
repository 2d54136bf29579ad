package connectors

import (
	"context"

	"snapscan/internal"
)

// MailConnector fetches raw messages from one mailbox label or folder.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
