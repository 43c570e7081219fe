// Package fixtures provides entity factories for tests that run against a
// real store.
//
// # Factories
//
//	f := fixtures.New(store)
//	owner := f.CreateUser(t)
//	server := f.CreateServer(t, owner, func(o *fixtures.ServerOpts) {
//	    o.DefaultPermissions = model.PermViewChannel
//	})
//	channel := f.CreateChannel(t, server)
//	msg := f.CreateMessage(t, channel, owner)
//
// Factories fail the test on any store error.
package fixtures
