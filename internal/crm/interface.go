package crm

import "context"

// StatusProvider reports the CRM integration status.
type StatusProvider interface {
	GetStatus(ctx context.Context) Result
}

var _ StatusProvider = (*Service)(nil)
