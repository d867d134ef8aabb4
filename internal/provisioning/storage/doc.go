// Package storage declares the release artifact store: an encrypted bucket
// with every public access path blocked, a bucket policy requiring TLS, and
// the grants letting CI publish releases and the fleet read them.
package storage
