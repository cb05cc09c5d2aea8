// Package mailer sends the account emails: address verification, welcome
// and password reset. Delivery goes through Postmark when credentials are
// configured; otherwise each message is written to the structured logger.
package mailer
