package core

// error_messages.go maps import errors to short user messages with a code
// support staff can look up.
//
// # Error Codes Reference
//
// Parse errors (PARSE001-PARSE099), the file bytes could not be read:
//
//	PARSE001 - File could not be read (any other parse failure)
//	PARSE002 - Legacy .xls workbook
//	PARSE003 - Requested sheet is missing
//	PARSE004 - Workbook has no sheets
//	PARSE005 - Unsupported text encoding
//	PARSE006 - Unknown file format
//	PARSE007 - Malformed quotes in delimited text
//
// Validation errors (VAL001-VAL099), a row or node was rejected:
//
//	VAL001 - Row rejected (any other validation failure)
//	VAL002 - Name too long
//	VAL003 - Duplicate job in one subcategory
//	VAL004 - Sector name or batch label missing
//	VAL005 - Unknown conflict mode
//	VAL006 - Value outside the stored column range
//
// Referential errors (REF001-REF099):
//
//	REF001 - Parent record disappeared during the run
//
// Store errors (STORE001-STORE099), retryable:
//
//	STORE001 - Store operation failed (any other store failure)
//	STORE002 - Store call timed out
//	STORE003 - Store unreachable
//	STORE004 - Record not found
//	STORE005 - Name already taken under the same parent
//
// Import errors (IMP001-IMP099), run management:
//
//	IMP001 - Import cancelled
//	IMP002 - Too many imports in progress
//	IMP003 - Run not found or expired
//	IMP004 - File too large
//	IMP005 - No file provided
//	IMP006 - No file could be imported
//	IMP007 - Category already in that sector
//	IMP008 - Too many files in one run
//
// ERR000 is the fallback when nothing matches; check the logs for the
// original error.
//
// Matching runs in three passes: sentinel errors via errors.Is, then
// case-insensitive substrings of the message, then the taxonomy kind. The
// first hit wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/catalog/internal/admin"
	"github.com/JonMunkholm/catalog/internal/ingest"
	"github.com/JonMunkholm/catalog/internal/taxonomy"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type sentinelMessage struct {
	target error
	msg    UserMessage
}

// sentinelMessages is checked first, in order.
var sentinelMessages = []sentinelMessage{
	// =========================================================================
	// Import run errors
	// =========================================================================
	{ErrImportCancelled, UserMessage{
		Message: "Import was cancelled",
		Action:  "Records written before the cancel are kept. Re-run the import to finish it",
		Code:    "IMP001",
	}},
	{ErrTooManyImports, UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "IMP002",
	}},
	{ErrRunNotFound, UserMessage{
		Message: "Import run not found",
		Action:  "The run may have expired. Start a new import",
		Code:    "IMP003",
	}},
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the catalog into smaller files",
		Code:    "IMP004",
	}},
	{ErrNoFiles, UserMessage{
		Message: "No file was selected",
		Action:  "Select at least one .xlsx or .csv file",
		Code:    "IMP005",
	}},
	{ErrNoReadableFiles, UserMessage{
		Message: "None of the files could be imported",
		Action:  "Check the error list for each file",
		Code:    "IMP006",
	}},
	{ErrTooManyFiles, UserMessage{
		Message: "Too many files in one import",
		Action:  "Split the files across several imports",
		Code:    "IMP008",
	}},
	{admin.ErrSameSector, UserMessage{
		Message: "The category already belongs to that sector",
		Action:  "Pick a different target sector",
		Code:    "IMP007",
	}},

	// =========================================================================
	// Parse errors
	// =========================================================================
	{ingest.ErrLegacyWorkbook, UserMessage{
		Message: "Legacy .xls workbooks are not supported",
		Action:  "Save the workbook as .xlsx and upload it again",
		Code:    "PARSE002",
	}},
	{ingest.ErrSheetNotFound, UserMessage{
		Message: "The selected sheet does not exist in the workbook",
		Action:  "Check the sheet name or leave it empty to use the first sheet",
		Code:    "PARSE003",
	}},
	{ingest.ErrNoSheets, UserMessage{
		Message: "The workbook has no sheets",
		Action:  "Upload a workbook with at least one sheet",
		Code:    "PARSE004",
	}},
	{ingest.ErrUnsupportedEncoding, UserMessage{
		Message: "The text encoding is not supported",
		Action:  "Use UTF-8, windows-1252 or iso-8859-1",
		Code:    "PARSE005",
	}},
	{ingest.ErrUnknownFormat, UserMessage{
		Message: "Unknown file format",
		Action:  "Upload an .xlsx, .csv or .tsv file",
		Code:    "PARSE006",
	}},

	// =========================================================================
	// Store errors
	// =========================================================================
	{taxonomy.ErrMissingParent, UserMessage{
		Message: "A parent record disappeared during the import",
		Action:  "Re-run the import; another user may have deleted part of the catalog",
		Code:    "REF001",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "The catalog store timed out",
		Action:  "Please try again in a few moments",
		Code:    "STORE002",
	}},
	{taxonomy.ErrNotFound, UserMessage{
		Message: "Record not found",
		Action:  "Refresh and check that the record still exists",
		Code:    "STORE004",
	}},
	{taxonomy.ErrDuplicate, UserMessage{
		Message: "An entry with this name already exists under the same parent",
		Action:  "Rename the entry or choose a different parent",
		Code:    "STORE005",
	}},
	{taxonomy.ErrInvalid, UserMessage{
		Message: "A value is outside the range the catalog can store",
		Action:  "Check the time and price columns for oversized values",
		Code:    "VAL006",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps message substrings (case-insensitive) to user messages.
// Specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: `bare " in non-quoted-field`,
		msg: UserMessage{
			Message: "The file has a stray quote character",
			Action:  "Quote the whole field or remove the quote on the reported line",
			Code:    "PARSE007",
		},
	},
	{
		pattern: `extraneous or missing " in quoted-field`,
		msg: UserMessage{
			Message: "The file has an unterminated quoted field",
			Action:  "Close the quote on the reported line",
			Code:    "PARSE007",
		},
	},
	{
		pattern: "characters, limit is",
		msg: UserMessage{
			Message: "A name is longer than 255 characters",
			Action:  "Shorten the name on the reported line",
			Code:    "VAL002",
		},
	},
	{
		pattern: "duplicate job",
		msg: UserMessage{
			Message: "The same job appears twice in one subcategory",
			Action:  "Remove or rename the repeated row",
			Code:    "VAL003",
		},
	},
	{
		pattern: "sector name is required",
		msg: UserMessage{
			Message: "A sector name is required",
			Action:  "Enter the sector the catalog belongs to",
			Code:    "VAL004",
		},
	},
	{
		pattern: "batch label is required",
		msg: UserMessage{
			Message: "The file needs a name to use as its category",
			Action:  "Rename the file or pass a batch label",
			Code:    "VAL004",
		},
	},
	{
		pattern: "unknown mode",
		msg: UserMessage{
			Message: "Unknown conflict mode",
			Action:  "Use skip or overwrite",
			Code:    "VAL005",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the catalog store",
			Action:  "Please try again in a few moments",
			Code:    "STORE003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "The catalog store timed out",
			Action:  "Please try again in a few moments",
			Code:    "STORE002",
		},
	},
}

// kindMessages is the last pass for taxonomy errors no pattern recognized.
var kindMessages = map[taxonomy.Kind]UserMessage{
	taxonomy.KindParse: {
		Message: "The file could not be read",
		Action:  "Check that the file matches its extension and is not damaged",
		Code:    "PARSE001",
	},
	taxonomy.KindValidation: {
		Message: "A row was rejected",
		Action:  "Fix the reported row and import again",
		Code:    "VAL001",
	},
	taxonomy.KindReferential: {
		Message: "A parent record disappeared during the import",
		Action:  "Re-run the import",
		Code:    "REF001",
	},
	taxonomy.KindStore: {
		Message: "The catalog store rejected an operation",
		Action:  "Please try again; nothing written so far is lost",
		Code:    "STORE001",
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. A nil
// error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	var te *taxonomy.Error
	if errors.As(err, &te) {
		if msg, ok := kindMessages[te.Kind]; ok {
			return msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
