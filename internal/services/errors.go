// Package services turns cached statistics snapshots into the view models the
// dashboard widgets render: summary cards, the activity chart, and the
// recent-dialogs and top-users tables.
//
// Errors are returned to handlers, which translate them into HTTP results.
package services

import "errors"

var (
	// ErrNoStatistics is returned when no statistics source is configured.
	ErrNoStatistics = errors.New("statistics source not configured")

	// ErrNoFormatter is returned when no formatter is configured.
	ErrNoFormatter = errors.New("formatter not configured")
)
