package odoo

import "fmt"

// AuthError indicates the ERP rejected the credentials or the authenticate call itself failed.
// It is fatal for a sync run.
type AuthError struct {
	Database string
	Username string
	Reason   string
	Err      error
}

func (e AuthError) Error() string {
	msg := fmt.Sprintf("erp authentication failed for %q on database %q", e.Username, e.Database)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e AuthError) Unwrap() error {
	return e.Err
}

// RemoteError indicates a single RPC call failed: an error payload, a non-2xx
// HTTP status, or a transport failure.
type RemoteError struct {
	Service string
	Model   string
	Method  string
	Code    int    // JSON-RPC error code or HTTP status
	Message string // RPC error message
	Err     error  // underlying transport error, if any
}

func (e RemoteError) Error() string {
	target := e.Service + "." + e.Method
	if e.Model != "" {
		target = e.Model + "." + e.Method
	}
	if e.Err != nil {
		return fmt.Sprintf("erp call %s failed: %v", target, e.Err)
	}
	return fmt.Sprintf("erp call %s failed: %s", target, e.Message)
}

func (e RemoteError) Unwrap() error {
	return e.Err
}
