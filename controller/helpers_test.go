package controller_test

import "errors"

var assertErr = errors.New("deliver failed")
