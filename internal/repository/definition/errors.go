package definition

import "errors"

var ErrDefinitionNotFound = errors.New("room definition not found")
