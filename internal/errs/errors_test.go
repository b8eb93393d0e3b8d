package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSingleLine(t *testing.T) {
	assert.Equal(t, "a b c d", SingleLine("a\nb\r\nc\rd"))
	assert.Equal(t, "plain", SingleLine("plain"))
	assert.Equal(t, "", Message(nil))
}

func TestErrorMessagesAreSingleLine(t *testing.T) {
	cause := errors.New("ORA-00942: table or view does not exist\nHelp: https://docs.oracle.com/error-help/db/ora-00942/")
	tests := []struct {
		err  error
		want string
	}{
		{&ConnectionError{Backend: "oracle", Cause: cause}, "ORA-00942: table or view does not exist Help: https://docs.oracle.com/error-help/db/ora-00942/"},
		{&ExecutionError{Stage: StageCount, Cause: cause}, "ORA-00942: table or view does not exist Help: https://docs.oracle.com/error-help/db/ora-00942/"},
		{&StreamError{Batch: 3, Cause: cause}, "ORA-00942: table or view does not exist Help: https://docs.oracle.com/error-help/db/ora-00942/"},
		{&CleanupError{Resource: "cursor", Cause: cause}, "close cursor: ORA-00942: table or view does not exist Help: https://docs.oracle.com/error-help/db/ora-00942/"},
		{&ConfigurationError{Field: "user", Cause: errors.New("required")}, "invalid configuration: user: required"},
		{&ConfigurationError{Cause: errors.New("bad\nfile")}, "invalid configuration: bad file"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
		assert.ErrorIs(t, tt.err, errors.Unwrap(tt.err))
	}
}

func TestIsCleanup(t *testing.T) {
	ce := &CleanupError{Resource: "session", Cause: errors.New("reset")}
	assert.True(t, IsCleanup(ce))
	assert.True(t, IsCleanup(fmt.Errorf("release: %w", ce)))
	assert.True(t, IsCleanup(errors.Join(errors.New("other"), ce)))
	assert.False(t, IsCleanup(&StreamError{Cause: errors.New("x")}))
	assert.False(t, IsCleanup(nil))
}
