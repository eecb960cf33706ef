package process

import "errors"

// ErrNoResponse indicates the API returned no choices.
var ErrNoResponse = errors.New("no response from API")
