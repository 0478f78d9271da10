package resource

import (
	"time"
)

// Status is the lifecycle state of a persisted record.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusFailed  Status = "FAILED"
	StatusDeleted Status = "DELETED"
)

func (s Status) String() string {
	return string(s)
}

// Well-known provider identifier keys.
const (
	IDBuildID          = "build_id"
	IDBuildStatus      = "build_status"
	IDFleetID          = "fleet_id"
	IDFleetArn         = "fleet_arn"
	IDUserPoolID       = "user_pool_id"
	IDUserPoolArn      = "user_pool_arn"
	IDUserPoolClientID = "user_pool_client_id"
	IDUserPoolDomain   = "user_pool_domain"
	IDFunctionName     = "function_name"
	IDFunctionArn      = "function_arn"
	IDRoleName         = "role_name"
	IDRoleArn          = "role_arn"
	IDRestApiID        = "rest_api_id"
	IDAuthorizerID     = "authorizer_id"
	IDDeploymentID     = "deployment_id"
	IDStageName        = "stage_name"
	IDInvokeURL        = "invoke_url"
)

// Lambda permission statement ids added by the REST API, kept for cleanup.
const (
	IDLoginPermission   = "login_permission_statement"
	IDSessionPermission = "start_session_permission_statement"
)

// Record is the durable entry for one resource kind within a namespace.
type Record struct {
	Namespace   string            `json:"namespace"`
	Kind        Kind              `json:"kind"`
	Name        string            `json:"name"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
	Status      Status            `json:"status"`
	Error       string            `json:"error,omitempty"`
	ErrorCode   string            `json:"error_code,omitempty"`
	RunID       string            `json:"run_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ID returns the provider identifier stored under key, or "".
func (r *Record) ID(key string) string {
	if r == nil || r.Identifiers == nil {
		return ""
	}
	return r.Identifiers[key]
}

// IsActive reports whether r exists and is Active.
func (r *Record) IsActive() bool {
	return r != nil && r.Status == StatusActive
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Identifiers != nil {
		c.Identifiers = make(map[string]string, len(r.Identifiers))
		for k, v := range r.Identifiers {
			c.Identifiers[k] = v
		}
	}
	return &c
}

// Snapshot is the full set of records for one namespace, keyed by kind.
type Snapshot map[Kind]*Record

// NewSnapshot indexes records by kind.
func NewSnapshot(records []*Record) Snapshot {
	s := make(Snapshot, len(records))
	for _, r := range records {
		if r != nil {
			s[r.Kind] = r
		}
	}
	return s
}

// Status returns the status of kind, or "" when absent.
func (s Snapshot) Status(kind Kind) Status {
	if r, ok := s[kind]; ok && r != nil {
		return r.Status
	}
	return ""
}

// Present reports whether a record exists for kind.
func (s Snapshot) Present(kind Kind) bool {
	r, ok := s[kind]
	return ok && r != nil
}

// Records returns the records in declaration order.
func (s Snapshot) Records() []*Record {
	var out []*Record
	for _, kind := range Kinds {
		if r, ok := s[kind]; ok && r != nil {
			out = append(out, r)
		}
	}
	return out
}
