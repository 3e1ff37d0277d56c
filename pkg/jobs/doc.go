// Package jobs schedules the periodic maintenance work of warden on a
// robfig/cron scheduler. Today that is purging expired service account
// access tokens.
package jobs
