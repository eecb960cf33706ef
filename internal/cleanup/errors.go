package cleanup

import "errors"

// ErrNoResponse indicates the API returned no completion choices.
var ErrNoResponse = errors.New("no response from API")
