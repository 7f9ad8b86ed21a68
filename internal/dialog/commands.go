package dialog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/subhatanay/expenseapp/internal/domain"
)

// turn is the working set of one chat line.
type turn struct {
	userID string
	tokens []string
	state  *domain.ConversationState
	dirty  bool
}

func newTurn(userID, text string, state *domain.ConversationState) *turn {
	return &turn{
		userID: userID,
		tokens: strings.Fields(strings.ToLower(text)),
		state:  state,
	}
}

func (t *turn) verb() string {
	if len(t.tokens) == 0 {
		return ""
	}
	return t.tokens[0]
}

// is reports whether the turn's tokens are exactly words.
func (t *turn) is(words ...string) bool {
	if len(t.tokens) != len(words) {
		return false
	}
	for i, w := range words {
		if t.tokens[i] != w {
			return false
		}
	}
	return true
}

func (t *turn) contextID() (string, bool) {
	if t.state.CurrentContextID == nil || *t.state.CurrentContextID == "" {
		return "", false
	}
	return *t.state.CurrentContextID, true
}

type command struct {
	name  string
	match func(t *turn) bool
	run   func(e *Engine, ctx context.Context, t *turn) (string, error)
}

// chain is evaluated in order; the first matching command handles the turn.
var chain = []command{
	{"create", func(t *turn) bool { return t.verb() == "create" && len(t.tokens) >= 2 }, (*Engine).create},
	{"list", func(t *turn) bool { return t.is("list") }, (*Engine).list},
	{"switch", func(t *turn) bool { return t.verb() == "switch" && len(t.tokens) >= 2 }, (*Engine).switchContext},
	{"add_session", func(t *turn) bool { return t.is("add") }, (*Engine).startBatch},
	{"add", func(t *turn) bool { return t.verb() == "add" && len(t.tokens) >= 3 }, (*Engine).addOne},
	{"buffer", func(t *turn) bool { return t.state.PendingAdd }, (*Engine).buffer},
	{"show_pending", func(t *turn) bool { return t.is("show", "pending") }, (*Engine).showPending},
	{"tag", func(t *turn) bool { return t.verb() == "tag" }, (*Engine).tag},
	{"summary", func(t *turn) bool { return t.verb() == "summary" }, (*Engine).summary},
	{"show", func(t *turn) bool { return t.verb() == "show" }, (*Engine).show},
}

var helpCommand = command{"help", nil, (*Engine).help}

func match(t *turn) command {
	for _, c := range chain {
		if c.match(t) {
			return c
		}
	}
	return helpCommand
}

func (e *Engine) create(ctx context.Context, t *turn) (string, error) {
	name := strings.Join(t.tokens[1:], " ")
	if _, err := e.contexts.CreateContext(ctx, t.userID, name); err != nil {
		if errors.Is(err, domain.ErrContextExists) {
			return fmt.Sprintf("⚠️ Context '%s' already exists.", name), nil
		}
		return "", err
	}
	return fmt.Sprintf("✅ Created context '%s'. Send 'switch %s' to use it.", name, name), nil
}

func (e *Engine) list(ctx context.Context, t *turn) (string, error) {
	contexts, err := e.contexts.ListContexts(ctx, t.userID)
	if err != nil {
		return "", err
	}
	if len(contexts) == 0 {
		return replyNoContexts, nil
	}
	current, _ := t.contextID()
	return formatContexts(contexts, current), nil
}

func (e *Engine) switchContext(ctx context.Context, t *turn) (string, error) {
	name := strings.Join(t.tokens[1:], " ")
	lc, err := e.contexts.FindContext(ctx, t.userID, name)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Sprintf("❌ No context named '%s'. Send 'list' to see yours.", name), nil
	}
	if err != nil {
		return "", err
	}
	id := lc.ID
	if cur, ok := t.contextID(); !ok || cur != id {
		// ordinals point at the old context's rows
		t.state.PendingTags = nil
		t.state.TagEpoch = ""
	}
	t.state.CurrentContextID = &id
	t.state.CurrentContext = lc.Name
	t.dirty = true
	return fmt.Sprintf("🔀 Switched to '%s'.", lc.Name), nil
}

// startBatch enters the buffering session, superseding any open one.
func (e *Engine) startBatch(ctx context.Context, t *turn) (string, error) {
	if _, ok := t.contextID(); !ok {
		return replyNoContext, nil
	}
	t.state.EndBatch()
	t.state.PendingAdd = true
	t.state.BatchID = uuid.NewString()
	t.dirty = true
	return replyBatchStarted, nil
}

func (e *Engine) addOne(ctx context.Context, t *turn) (string, error) {
	contextID, ok := t.contextID()
	if !ok {
		return replyNoContext, nil
	}
	item := strings.Join(t.tokens[1:len(t.tokens)-1], " ")
	amount, err := parseAmount(t.tokens[len(t.tokens)-1])
	if err != nil {
		return replyBadAmount, nil
	}

	tx := e.manualTransaction(t.userID, contextID, domain.Entry{Item: item, Amount: amount}, e.today())
	if _, err := e.ledger.Commit(ctx, tx); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Added expense: %s - %s", item, money(amount)), nil
}

// buffer handles every line while a session is open.
func (e *Engine) buffer(ctx context.Context, t *turn) (string, error) {
	if t.is("done") {
		return e.commitBatch(ctx, t)
	}
	if len(t.tokens) != 2 {
		return replyBufferFormat, nil
	}
	amount, err := parseAmount(t.tokens[1])
	if err != nil {
		return replyBufferFormat, nil
	}
	t.state.Buffer = append(t.state.Buffer, domain.Entry{Item: t.tokens[0], Amount: amount})
	t.dirty = true
	return fmt.Sprintf("📝 %s - %s noted (%d so far). Send 'done' to save.", t.tokens[0], money(amount), len(t.state.Buffer)), nil
}

// commitBatch writes the buffer as one batch. Row ids derive from the
// session's batch id, so replaying a turn whose state write was lost does
// not write the rows twice. The buffer is kept when the batch fails.
func (e *Engine) commitBatch(ctx context.Context, t *turn) (string, error) {
	st := t.state
	if len(st.Buffer) == 0 {
		st.EndBatch()
		t.dirty = true
		return replyEmptyBatch, nil
	}
	contextID, ok := t.contextID()
	if !ok {
		return replyNoContext, nil
	}

	batchID := st.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
		st.BatchID = batchID
	}

	date := e.today()
	txs := make([]domain.Transaction, len(st.Buffer))
	total := decimal.Zero
	for i, entry := range st.Buffer {
		tx := e.manualTransaction(t.userID, contextID, entry, date)
		tx.ID = batchRowID(batchID, i)
		txs[i] = tx
		total = total.Add(entry.Amount)
	}

	if _, err := e.ledger.CommitBatch(ctx, txs); err != nil {
		return "", err
	}

	n := len(st.Buffer)
	st.EndBatch()
	t.dirty = true
	return fmt.Sprintf("✅ Saved %d expense(s), total %s.", n, money(total)), nil
}

func batchRowID(batchID string, i int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", batchID, i))).String()
}

func (e *Engine) manualTransaction(userID, contextID string, entry domain.Entry, date civil.Date) domain.Transaction {
	item := entry.Item
	cid := contextID
	return domain.Transaction{
		UserID:    userID,
		ContextID: &cid,
		Date:      date,
		Action:    domain.ActionDebit,
		Amount:    entry.Amount,
		Merchant:  domain.UnknownMerchant,
		Item:      &item,
		CreatedAt: e.now().UTC(),
	}
}

// showPending lists untagged staged rows and replaces the ordinal map.
func (e *Engine) showPending(ctx context.Context, t *turn) (string, error) {
	contextID, ok := t.contextID()
	if !ok {
		return replyNoContext, nil
	}
	pending, err := e.ledger.ListPending(ctx, t.userID, contextID)
	if err != nil {
		return "", err
	}

	tags := make(map[int]string, len(pending))
	for i, tx := range pending {
		tags[i+1] = tx.ID
	}
	t.state.PendingTags = tags
	t.state.TagEpoch = e.epoch
	t.dirty = true

	if len(pending) == 0 {
		return replyNothingPending, nil
	}
	return formatPending(pending), nil
}

func (e *Engine) tag(ctx context.Context, t *turn) (string, error) {
	if len(t.tokens) < 3 {
		return replyTagUsage, nil
	}
	ordinal, err := strconv.Atoi(t.tokens[1])
	if err != nil {
		return replyTagUsage, nil
	}
	st := t.state
	if st.PendingTags == nil || st.TagEpoch != e.epoch {
		return replyNoPendingList, nil
	}
	txID, ok := st.PendingTags[ordinal]
	if !ok {
		return fmt.Sprintf("❌ No pending transaction #%d. Send 'show pending' to refresh.", ordinal), nil
	}

	category := strings.Join(t.tokens[2:], " ")
	contextID, _ := t.contextID()
	if err := e.ledger.UpdateCategory(ctx, t.userID, txID, category, contextID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Sprintf("❌ Transaction #%d is no longer available.", ordinal), nil
		}
		return "", err
	}
	return fmt.Sprintf("🏷️ Tagged #%d as %s.", ordinal, category), nil
}

func (e *Engine) summary(ctx context.Context, t *turn) (string, error) {
	contextID, ok := t.contextID()
	if !ok {
		return replyNoContext, nil
	}
	args := t.tokens[1:]
	switch {
	case len(args) == 0:
		return e.daySummary(ctx, t, contextID, e.today())
	case len(args) == 2 && args[0] == "date":
		d, err := civil.ParseDate(args[1])
		if err != nil {
			return replyBadDate, nil
		}
		return e.daySummary(ctx, t, contextID, d)
	case len(args) == 2 && args[0] == "month":
		from, to, err := monthRange(args[1])
		if err != nil {
			return replyBadMonth, nil
		}
		txs, err := e.ledger.QueryByContextAndDate(ctx, t.userID, contextID, from, to)
		if err != nil {
			return "", err
		}
		return formatMonthSummary(t.state.CurrentContext, args[1], txs), nil
	default:
		return replySummaryUsage, nil
	}
}

func (e *Engine) daySummary(ctx context.Context, t *turn, contextID string, d civil.Date) (string, error) {
	txs, err := e.ledger.QueryByContextAndDate(ctx, t.userID, contextID, d, d)
	if err != nil {
		return "", err
	}
	return formatDaySummary(t.state.CurrentContext, d, txs), nil
}

func (e *Engine) show(ctx context.Context, t *turn) (string, error) {
	contextID, ok := t.contextID()
	if !ok {
		return replyNoContext, nil
	}
	args := t.tokens[1:]
	d := e.today()
	switch {
	case len(args) == 0:
	case len(args) == 2 && args[0] == "date":
		parsed, err := civil.ParseDate(args[1])
		if err != nil {
			return replyBadDate, nil
		}
		d = parsed
	default:
		return replyShowUsage, nil
	}
	txs, err := e.ledger.QueryByContextAndDate(ctx, t.userID, contextID, d, d)
	if err != nil {
		return "", err
	}
	return formatListing(t.state.CurrentContext, d, txs), nil
}

func (e *Engine) help(ctx context.Context, t *turn) (string, error) {
	return replyHelp, nil
}

// parseAmount accepts "1,200.5" style amounts and rounds to two places.
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive: %s", s)
	}
	return d.Round(2), nil
}

// monthRange parses YYYY-MM into its first and last day.
func monthRange(s string) (civil.Date, civil.Date, error) {
	m, err := time.Parse("2006-01", s)
	if err != nil {
		return civil.Date{}, civil.Date{}, err
	}
	first := civil.DateOf(m)
	last := civil.DateOf(time.Date(m.Year(), m.Month()+1, 0, 0, 0, 0, 0, time.UTC))
	return first, last, nil
}
