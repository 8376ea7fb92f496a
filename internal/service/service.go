// Package service holds the business rules of the recipe API.
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service         → ownership, uniqueness, transactions
//	Repository      → reads/writes documents
//
// Services depend on repository.Store, never on the sqlite package, so tests
// run them against an in-memory fake. They return apperror values and leave
// the mapping to HTTP status codes to the handler.
//
// Every operation that writes to a user and a recipe together runs in a
// single Store.WithTx call: both sides commit or neither does.
package service
