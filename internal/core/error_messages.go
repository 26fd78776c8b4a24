package core

// error_messages.go maps technical errors to messages that the HTTP API and
// the CLI show to people, each with a support code:
//
//	FMT001-FMT003   format, theme and encoding problems
//	IMP001-IMP004   schema and source problems during import
//	FILE001-FILE004 upload, destination and request body problems
//	JOB001-JOB005   background job state
//	ERR000          anything unrecognised
//
// Matching is a case-insensitive substring search over err.Error(). Entries
// are tried in order, so an error naming two conditions gets the first.

import (
	"fmt"
	"strings"
)

// UserMessage is what a person is told about an error.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

// errorCatalog is searched top to bottom. "superseded" must stay ahead of
// "context canceled" because a superseded task's error wraps both.
var errorCatalog = []struct {
	patterns []string
	msg      UserMessage
}{
	{[]string{"unsupported format"}, UserMessage{
		"This file format is not supported", "Use one of the formats listed by /api/formats", "FMT001"}},
	{[]string{"unknown theme"}, UserMessage{
		"The requested theme does not exist", "Pick one of the listed themes", "FMT002"}},
	{[]string{"unsupported encoding"}, UserMessage{
		"The text encoding is not supported", "Use utf-8, utf-16, windows-1252 or iso-8859-1", "FMT003"}},

	{[]string{"invalid schema", "schema has no fields"}, UserMessage{
		"The schema is incomplete or inconsistent", "Give every field a unique name and a non-negative length", "IMP001"}},
	{[]string{"sheet not found", "doesn't exist"}, UserMessage{
		"The requested worksheet does not exist", "Check the sheet name or leave it empty to use the first sheet", "IMP002"}},
	{[]string{"open workbook"}, UserMessage{
		"The spreadsheet could not be opened", "Re-save the file as .xlsx and try again", "IMP003"}},
	{[]string{"requires field lengths"}, UserMessage{
		"Fixed-width imports need a length for every field", "Supply a schema with a length for every field", "IMP004"}},

	{[]string{"file too large", "request body too large"}, UserMessage{
		"File exceeds the maximum size limit", "Split the file into smaller chunks", "FILE001"}},
	{[]string{"no file provided"}, UserMessage{
		"No file was provided", "Attach a file to the request", "FILE002"}},
	{[]string{"create file", "remove existing file"}, UserMessage{
		"The destination could not be written", "Check the destination path and permissions", "FILE003"}},
	{[]string{"invalid dataset"}, UserMessage{
		"The dataset could not be decoded", "Send a JSON dataset with tables, columns and rows", "FILE004"}},

	{[]string{"superseded"}, UserMessage{
		"A newer job replaced this one", "Wait for the newer job or restart this one", "JOB002"}},
	{[]string{"context canceled"}, UserMessage{
		"The job was cancelled", "Start a new job when ready", "JOB001"}},
	{[]string{"too many concurrent jobs"}, UserMessage{
		"Too many jobs in progress", "Please wait a moment and try again", "JOB003"}},
	{[]string{"job not found"}, UserMessage{
		"The job id is unknown or has expired", "Start a new job", "JOB004"}},
	{[]string{"deadline exceeded"}, UserMessage{
		"The job took too long", "Try a smaller file or try again later", "JOB005"}},
}

var unknownError = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError returns the message for err, or a zero UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	text := strings.ToLower(err.Error())
	for _, entry := range errorCatalog {
		for _, p := range entry.patterns {
			if strings.Contains(text, p) {
				return entry.msg
			}
		}
	}
	return unknownError
}

// FormatUserError renders err as "Message (Code: XXX). Action", or "" for nil.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Code == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a known code rather than ERR000.
func IsUserFacing(err error) bool {
	code := MapError(err).Code
	return code != "" && code != unknownError.Code
}

// UserError carries a technical error together with its user message.
// Error returns the user message; Unwrap returns the technical error.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string { return e.User.Message }

func (e *UserError) Unwrap() error { return e.Technical }

// NewUserError wraps err, or returns nil for nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
