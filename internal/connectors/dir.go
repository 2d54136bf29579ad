package connectors

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"snapscan/internal"
)

// DirConnector reads .eml files dropped into a folder, for scanners and
// mail clients that save delivery slips to disk. The label is a
// subdirectory; "" or "INBOX" is the folder itself.
type DirConnector struct {
	root string
}

func NewDirConnector(root string) (*DirConnector, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("missing inbox directory")
	}
	return &DirConnector{root: root}, nil
}

func (c *DirConnector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	dir := c.root
	if label != "" && !strings.EqualFold(label, "INBOX") {
		dir = filepath.Join(c.root, label)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".eml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if max > 0 && len(names) > max {
		names = names[:max]
	}

	out := make([]internal.FetchedMailMessage, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}

		msg := internal.FetchedMailMessage{
			Provider:   "dir",
			MessageID:  name,
			ReceivedAt: info.ModTime().UTC().Format(time.RFC3339),
			Raw:        raw,
		}
		if env, err := enmime.ReadEnvelope(bytes.NewReader(raw)); err == nil {
			msg.Subject = env.GetHeader("Subject")
			msg.From = env.GetHeader("From")
			if id := strings.TrimSpace(env.GetHeader("Message-ID")); id != "" {
				msg.MessageID = id
			}
		}
		out = append(out, msg)
	}
	return out, nil
}
