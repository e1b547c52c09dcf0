package maintenance

import "net/http"

// SuccessBody is the client-facing shape of a successful run
type SuccessBody struct {
	Status          string  `json:"status"`
	Operation       string  `json:"operation"`
	Message         string  `json:"message"`
	BackupCreated   bool    `json:"backup_created"`
	BackupReference *string `json:"backup_reference"`
	MaintenanceTime string  `json:"maintenance_time"`
	TargetProcessed string  `json:"target_processed"`
	OperationID     string  `json:"operation_id"`
}

// ErrorBody is the client-facing shape of every failure
type ErrorBody struct {
	Status   string `json:"status"`
	Code     Code   `json:"code"`
	Message  string `json:"message"`
	Target   string `json:"target,omitempty"`
	ErrorRef string `json:"error_ref,omitempty"`
}

// Render maps a result to its HTTP status and flat response body
func Render(result Result) (int, interface{}) {
	if s := result.Success; s != nil {
		body := SuccessBody{
			Status:          "success",
			Operation:       s.Operation,
			Message:         successMessage,
			BackupCreated:   s.BackupCreated,
			MaintenanceTime: s.CompletedAt.Format("2006-01-02 15:04:05"),
			TargetProcessed: s.Target,
			OperationID:     s.OperationID,
		}
		if s.BackupCreated {
			ref := s.BackupReference
			body.BackupReference = &ref
		}
		return http.StatusOK, body
	}

	f := result.Failure
	if f == nil {
		f = systemError(errEmptyResult)
	}
	message := f.Message
	if message == "" {
		message = failureMessages[f.Code]
	}
	return StatusForFailure(f.Code), ErrorBody{
		Status:   "error",
		Code:     f.Code,
		Message:  message,
		Target:   f.Target,
		ErrorRef: f.ErrorRef,
	}
}
