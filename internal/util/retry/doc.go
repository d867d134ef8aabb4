// Package retry provides exponential backoff retry logic for transient failures.
//
// [Do] retries an operation until it succeeds, returns an error marked with
// [Fatal] or rejected by the classifier, runs out of attempts, or its context
// ends. It wraps the AWS calls made by the audit and release commands.
package retry
