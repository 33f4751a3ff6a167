// Package postgres implements the account and item stores on PostgreSQL
// through pgx.
//
// Account updates take a row lock (SELECT ... FOR UPDATE) so refreshes are
// serialised across processes sharing the database. Item upserts are single
// INSERT ... ON CONFLICT statements; xmax tells an insert from an update.
package postgres
