// Package async runs background and fan-out work with panic recovery and
// per-task timeouts.
//
// SafeGo starts a fire-and-forget task whose failures are only logged.
// Batch fans a slice out over a bounded number of goroutines and collects
// every error, which the mail service uses to deliver invitations.
package async
