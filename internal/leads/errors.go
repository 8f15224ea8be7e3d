package leads

import "errors"

// ErrNotConfigured is returned when the spreadsheet credentials are missing.
var ErrNotConfigured = errors.New("leads: google service account credentials not configured")
