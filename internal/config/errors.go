package config

import "errors"

// ErrConfig wraps any failure loading or parsing configuration files.
var ErrConfig = errors.New("config: invalid configuration")
