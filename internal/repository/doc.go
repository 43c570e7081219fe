// Package repository implements the service layer's repositories on SurrealDB.
//
// Every repository wraps a generic table helper that stores a model as the
// content of one record. The model's "id" is kept under "key", and the record
// id is type::thing(table, key); composite keys such as member:[server, user]
// use arrays.
//
// # Writes and Transactions
//
// Plain writes go through database.Exec, so they join the batch transaction
// on the context when one exists (see Transactor). Conditional writes
// (UnreadRepository.CompareAndSwap, ChannelRepository.SwapLastMessage) must
// report whether they applied and therefore always run immediately.
//
// # Example Usage
//
//	db := database.NewSurrealDB(cfg)
//	if err := db.Connect(ctx); err != nil {
//	    return err
//	}
//	if err := repository.Migrate(ctx, db); err != nil {
//	    return err
//	}
//	store := repository.NewStore(db)
package repository
