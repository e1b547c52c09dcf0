package maintenance

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Code identifies the outcome of a maintenance request
type Code string

const (
	CodeMethodNotSupported Code = "METHOD_NOT_SUPPORTED"
	CodeInvalidOperation   Code = "INVALID_OPERATION"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInvalidToken       Code = "INVALID_TOKEN"
	CodeTargetNotFound     Code = "TARGET_NOT_FOUND"
	CodeAccessDenied       Code = "ACCESS_DENIED"
	CodeBackupFailed       Code = "BACKUP_FAILED"
	CodeOperationFailed    Code = "OPERATION_FAILED"
	CodeSystemError        Code = "SYSTEM_ERROR"

	// CodeSuccess is never sent to clients; it labels successful runs in
	// metrics and the run history.
	CodeSuccess Code = "SUCCESS"
)

const successMessage = "System maintenance completed successfully."

var failureMessages = map[Code]string{
	CodeMethodNotSupported: "Request method not supported.",
	CodeInvalidOperation:   "Invalid operation specified.",
	CodeUnauthorized:       "Operation not authorized.",
	CodeInvalidToken:       "Invalid security token.",
	CodeAccessDenied:       "Insufficient permissions for maintenance operation.",
	CodeBackupFailed:       "Backup could not be created; maintenance operation aborted.",
	CodeOperationFailed:    "System maintenance operation could not be completed.",
	CodeSystemError:        "Internal system error occurred during maintenance.",
}

// StatusForFailure maps a failure code to its HTTP status. Execution-stage
// failures are business outcomes and answer 200; only gate rejections and
// SYSTEM_ERROR escalate.
func StatusForFailure(code Code) int {
	switch code {
	case CodeMethodNotSupported:
		return http.StatusMethodNotAllowed
	case CodeInvalidOperation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeInvalidToken:
		return http.StatusForbidden
	case CodeSystemError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// Success describes a completed run
type Success struct {
	Operation       string
	Target          string
	BackupCreated   bool
	BackupReference string
	BackupBytes     int64
	OperationID     string
	CompletedAt     time.Time
}

// Failure describes a terminal rejection or fault. Err is kept for server-side
// logging only and never rendered.
type Failure struct {
	Code     Code
	Message  string
	Target   string
	ErrorRef string
	Err      error
}

func newFailure(code Code) *Failure {
	return &Failure{Code: code, Message: failureMessages[code]}
}

func targetNotFound(target string) *Failure {
	return &Failure{Code: CodeTargetNotFound, Message: "Target file not located: " + target}
}

func systemError(err error) *Failure {
	f := newFailure(CodeSystemError)
	f.Err = err
	f.ErrorRef = ErrorRef(err.Error())
	return f
}

// ErrorRef derives the opaque reference returned in place of fault detail
func ErrorRef(detail string) string {
	sum := md5.Sum([]byte(detail))
	return "ERR_" + strings.ToUpper(hex.EncodeToString(sum[:]))[:8]
}

// Result holds exactly one of Success or Failure
type Result struct {
	Success *Success
	Failure *Failure
}

// OK reports whether the run succeeded
func (r Result) OK() bool {
	return r.Success != nil
}

// Code returns the failure code, or CodeSuccess
func (r Result) Code() Code {
	if r.Failure != nil {
		return r.Failure.Code
	}
	return CodeSuccess
}

// OperationID returns the id of a successful run, or ""
func (r Result) OperationID() string {
	if r.Success != nil {
		return r.Success.OperationID
	}
	return ""
}

func failed(f *Failure) Result {
	return Result{Failure: f}
}

var errEmptyResult = errors.New("maintenance result carries neither success nor failure")
