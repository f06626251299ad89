// Package report renders session run reports as a plain-text packet trace
// or a PDF document.
package report
