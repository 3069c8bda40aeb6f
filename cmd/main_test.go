package main

import (
	"fmt"
	"github.com/maxaizer/funding-digest/internal/services"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"testing"
)

func Test_ExitCode_Success(t *testing.T) {
	log, hook := test.NewNullLogger()

	assert.Equal(t, 0, exitCode(nil, log))
	assert.Empty(t, hook.AllEntries())
}

func Test_ExitCode_FailureIsNotLoggedAsErrorAgain(t *testing.T) {
	for _, err := range []error{
		fmt.Errorf("%w: %w", services.ErrDispatchFailed, errors.New("smtp: connection refused")),
		fmt.Errorf("%w: %w", services.ErrStateWrite, errors.New("disk full")),
	} {
		log, hook := test.NewNullLogger()

		assert.Equal(t, 1, exitCode(err, log))
		for _, entry := range hook.AllEntries() {
			assert.Greater(t, entry.Level, logrus.ErrorLevel, "unexpected %s entry: %s", entry.Level, entry.Message)
		}
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	}
}
