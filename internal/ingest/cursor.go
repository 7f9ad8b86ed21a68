package ingest

import (
	"fmt"
	"strings"

	"github.com/subhatanay/expenseapp/internal/domain"
)

// PageSize bounds how many messages one source is asked for per pass.
const PageSize = 50

// BuildQuery returns the source-native search query for the given sender
// addresses, narrowed by the cursor watermark when there is one.
func BuildQuery(senders []string, cur *domain.Cursor) string {
	var q string
	switch len(senders) {
	case 0:
	case 1:
		q = "from:" + senders[0]
	default:
		q = "from:(" + strings.Join(senders, " OR ") + ")"
	}
	if cur != nil && !cur.Watermark.IsZero() {
		q = strings.TrimSpace(fmt.Sprintf("%s after:%d", q, cur.Watermark.Unix()))
	}
	return q
}

// unseen returns ids newer than the cursor's last processed message. ids
// arrive newest first; scanning stops at the first id equal to the stored
// one since everything older was already handled.
func unseen(ids []string, cur *domain.Cursor) []string {
	if cur == nil || cur.LastMessageID == "" {
		return ids
	}
	for i, id := range ids {
		if id == cur.LastMessageID {
			return ids[:i]
		}
	}
	return ids
}
