package pgstore

import "errors"

var ErrNoRowsAffected = errors.New("pgstore: write affected no rows")
