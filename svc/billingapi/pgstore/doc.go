// Package pgstore implements the billing stores on PostgreSQL with pgx.
//
// Subscription writes run in a transaction that takes transaction-scoped
// advisory locks on the workspace and on the external subscription id, then
// folds the incoming state into the locked row with billing.Merge. Status
// marks are kept in their own table so a cancellation that arrives before
// the checkout completion is still applied when the row appears.
//
// The schema ships as goose migrations embedded in Migrations.
package pgstore
