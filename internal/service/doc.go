// Package service implements the lifecycle rules of the chat core.
//
// Each service authorizes the actor through the permission resolver before
// any write, performs the mutation through the repositories declared in
// store.go, then runs dependent updates: cascades on deletion, read state
// propagation on message changes, and domain events.
//
// # Service Pattern
//
//   - Constructor function (NewXxxService) accepts the Store and an events.Publisher
//   - Methods take an authenticated actor id and return an entity or a *model.Error
//   - Context is passed through for cancellation and to carry store transactions
//
// # Repository Interfaces
//
// Services define the repository interfaces they consume. The SurrealDB
// implementation lives in internal/repository and an in-memory one in
// internal/repository/memory.
//
// # Error Handling
//
// Every error is a *model.Error. Branch on kind or on a specific sentinel:
//
//	if errors.Is(err, model.ErrNotFound) { ... }
//	if errors.Is(err, service.ErrUserBanned) { ... }
//
// # Example Usage
//
//	core := service.NewCore(store, hub, service.DefaultOptions(), service.OnboardingConfig{})
//	server, err := core.Servers.CreateServer(ctx, userID, &model.CreateServerRequest{
//	    Name: "My Server",
//	})
package service
