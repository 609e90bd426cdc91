// Package ledger implements a credit-based billing ledger for Go
// applications. A user holds a balance in integer cents ("credits");
// services report usage events that atomically deduct credits, and
// payment or subscription events add them. The engine guarantees
// monetary correctness under concurrency and duplicate submission.
//
// Ledger is designed as a library, not a service. Import it directly
// into your Go application. It provides:
//
//   - An append-only transaction log with a running post-write balance
//   - Idempotent usage reporting keyed by caller-supplied event ids
//   - Atomic compound writes over an embedded ordered key-value store
//     with four column families and a by-user secondary index
//   - A deterministic pricing engine (per-model LLM token rates,
//     compute, API calls, storage) with a minimum-charge rule
//   - Per-user serialization so concurrent debits never lose updates
//     or double-charge
//   - Subscription state tracking with idempotent per-period grants
//   - Auto-refill, best-effort analytics forwarding, and a plugin
//     surface for audit and metrics extensions
//
// # Quick Start
//
// Create a ledger instance with your preferred store:
//
//	import (
//	    ledger "github.com/xraph/zcredit-ledger"
//	    "github.com/xraph/zcredit-ledger/store/kv"
//	)
//
//	st, err := kv.Open(cfg.DBPath())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	l := ledger.New(st)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// Create an account, buy credits, and report usage:
//
//	user := id.NewUserID()
//	l.CreateAccount(ctx, user, "dev@example.com")
//	l.PurchaseCompleted(ctx, user, 5000, "pi_3OqXh2")
//
//	res, err := l.ReportUsage(ctx, &usage.Event{
//	    EventID: "evt-8741",
//	    UserID:  user,
//	    Metric:  usage.LLMTokensMetric("anthropic", "claude-3-5-sonnet", 500, 1000),
//	})
//
// Repeating a ReportUsage call with the same EventID returns
// *DuplicateEventError and changes nothing, so clients retry safely
// after a crash or timeout.
//
// # Money
//
// All monetary quantities are signed 64-bit integer cents
// (types.Cents); one credit is one cent. Floating point never touches
// the write path.
//
// # Identifiers
//
// UserID and AgentID are UUIDs. TransactionID is a ULID: its high 48
// bits are a millisecond timestamp, so byte order equals chronological
// order and the by-user index yields newest-first listings with a plain
// reverse scan.
package ledger
