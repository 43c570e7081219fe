// Package database provides SurrealDB connectivity for the chat core.
//
// The Database interface abstracts the three query shapes the repositories use:
//   - Query: Returns multiple results (for SELECT queries returning lists)
//   - QueryOne: Returns a single result (for SELECT by ID)
//   - Execute: No return value (for CREATE/UPDATE/DELETE mutations)
//
// # Transactions
//
// Transactions are BATCH-BASED, not connection-level. BeginTx returns a
// Transaction that accumulates writes in memory; Commit sends them wrapped in
// BEGIN TRANSACTION / COMMIT TRANSACTION so they apply atomically. Variables of
// each buffered statement are namespaced by TxBuilder, so two statements that
// both bind $key do not collide.
//
// A transaction travels on the context. Repositories write through Exec,
// which appends to the transaction found on the context or runs immediately
// when there is none:
//
//	err := database.RunInTx(ctx, db, func(ctx context.Context) error {
//	    if err := messages.DeleteByChannel(ctx, channelID); err != nil {
//	        return err
//	    }
//	    return channels.Delete(ctx, channelID)
//	})
//
// Reads never see buffered writes. Conditional writes that must report
// whether they applied (compare-and-set) always run outside the batch.
//
// # Error Handling
//
// Standard errors are defined for common failure cases:
//   - ErrNotFound: Record does not exist
//   - ErrDuplicate: Record or unique index value already exists
//   - ErrConnection: Database connection issues
//   - ErrQuery: Query execution failures
//   - ErrConflict: A conditional write lost a race
//
// Use errors.Is() to check error types:
//
//	if errors.Is(err, database.ErrDuplicate) {
//	    // Handle existing record
//	}
package database
