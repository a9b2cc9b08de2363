package repository

import "errors"

// ErrNoRows is returned by updates that matched nothing.
var ErrNoRows = errors.New("no rows affected")
