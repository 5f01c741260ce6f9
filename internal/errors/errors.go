package errors

import "errors"

var ErrIntentNotFound = errors.New("payment intent not found")
