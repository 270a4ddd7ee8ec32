// Package require thinly wraps testify/require so call sites read
// `require.Equal(t, ...)` without every test file importing testify
// directly, mirroring the teacher's own internal/testing wrapper style.
package require

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestingT = require.TestingT

var (
	Equal      = require.Equal
	NotEqual   = require.NotEqual
	True       = require.True
	False      = require.False
	NoError    = require.NoError
	Error      = require.Error
	ErrorIs    = require.ErrorIs
	Nil        = require.Nil
	NotNil     = require.NotNil
	Len        = require.Len
	Contains   = require.Contains
	Panics     = require.Panics
	NotPanics  = require.NotPanics
	EqualError = require.EqualError
	Zero       = require.Zero

	ObjectsAreEqual = assert.ObjectsAreEqual
)
