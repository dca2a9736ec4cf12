package resize

import "errors"

var ErrInvalidEdge = errors.New("edge must be top or bottom")
