package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// errorFrom returns the error of a call that is expected to fail.
func errorFrom[T any](_ T, err error) error { return err }

func TestMapError_Codes(t *testing.T) {
	deadline, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-deadline.Done()

	tests := []struct {
		name string
		err  error
		code string
	}{
		{"wrapped unsupported format", fmt.Errorf("export Format(42): %w", ErrUnsupportedFormat), "FMT001"},
		{"unknown theme", errorFrom(ParseTheme("neon")), "FMT002"},
		{"unknown encoding", errorFrom(NewTextReader(strings.NewReader(""), "ebcdic")), "FMT003"},
		{"empty schema", (&Schema{}).Validate(), "IMP001"},
		{"duplicate schema field", errors.New(`invalid schema: duplicate field "Name"`), "IMP001"},
		{"missing sheet", errors.New(`import xlsx: sheet not found: "Q2"`), "IMP002"},
		{"broken workbook", errors.New("import xlsx: open workbook: zip: not a valid zip file"), "IMP003"},
		{"fixed width without lengths", errors.New("fixed-width import requires field lengths"), "IMP004"},
		{"upload over limit", errors.New("FILE TOO LARGE"), "FILE001"},
		{"no upload", errors.New("no file provided: http: no such file"), "FILE002"},
		{"destination not writable", errors.New("create file: permission denied"), "FILE003"},
		{"bad dataset body", errors.New("invalid dataset: unexpected EOF"), "FILE004"},
		{"cancelled", context.Canceled, "JOB001"},
		{"superseded before cancelled", fmt.Errorf("%w: %w", ErrTaskSuperseded, context.Canceled), "JOB002"},
		{"limiter busy", ErrTooManyJobs, "JOB003"},
		{"expired job", errors.New("job not found: 1234"), "JOB004"},
		{"timed out", deadline.Err(), "JOB005"},
		{"anything else", errors.New("some random internal error"), "ERR000"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := MapError(tt.err)
			assert.Equal(t, tt.code, msg.Code)
			if tt.err != nil {
				assert.NotEmpty(t, msg.Message)
				assert.NotEmpty(t, msg.Action)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	assert.Equal(t,
		"No file was provided (Code: FILE002). Attach a file to the request",
		FormatUserError(errors.New("no file provided")))
	assert.Empty(t, FormatUserError(nil))
}

func TestIsUserFacing(t *testing.T) {
	assert.False(t, IsUserFacing(nil))
	assert.True(t, IsUserFacing(ErrUnsupportedFormat))
	assert.False(t, IsUserFacing(errors.New("random internal error xyz")))
}

func TestNewUserError(t *testing.T) {
	assert.Nil(t, NewUserError(nil))

	userErr := NewUserError(fmt.Errorf("import csv: %w", ErrUnsupportedFormat))
	require.NotNil(t, userErr)
	assert.Equal(t, "This file format is not supported", userErr.Error())
	assert.ErrorIs(t, userErr, ErrUnsupportedFormat)
}
