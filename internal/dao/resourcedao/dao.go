package resourcedao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/gamelift-backend/internal/errors"
	"github.com/savaki/gamelift-backend/internal/resource"
)

// TableName returns the default state table name.
func TableName(prefix string) string {
	if prefix == "" {
		return "gamelift-backend--resources"
	}
	return fmt.Sprintf("%s-gamelift-backend--resources", prefix)
}

// PK represents the partition key: {Namespace}
type PK string

// NewPK creates a partition key from a namespace
func NewPK(namespace string) PK {
	return PK(namespace)
}

// String returns the string representation
func (pk PK) String() string {
	return string(pk)
}

// ID represents a record ID in format {namespace}:{kind}
// Example: test1:Fleet
type ID string

// NewID creates an ID from namespace and kind
func NewID(namespace string, kind resource.Kind) ID {
	return ID(fmt.Sprintf("%s:%s", namespace, kind))
}

// ParseID parses an ID into namespace and kind components
func ParseID(id ID) (namespace string, kind resource.Kind, err error) {
	s := string(id)
	idx := strings.LastIndex(s, ":")
	if idx <= 0 || idx == len(s)-1 {
		return "", "", fmt.Errorf("invalid ID format: %s, expected {namespace}:{kind}", s)
	}
	kind, err = resource.ParseKind(s[idx+1:])
	if err != nil {
		return "", "", fmt.Errorf("invalid ID format: %s: %w", s, err)
	}
	return s[:idx], kind, nil
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// Record is the DynamoDB form of a resource.Record
type Record struct {
	PK          PK                `ddb:"hash" dynamodbav:"pk"`         // {Namespace}
	SK          string            `ddb:"range" dynamodbav:"sk"`        // {Kind}
	Name        string            `dynamodbav:"name,omitempty"`        // Provider-side resource name
	Identifiers map[string]string `dynamodbav:"identifiers,omitempty"` // Provider identifiers
	Status      string            `dynamodbav:"status"`                // PENDING|ACTIVE|FAILED|DELETED
	ErrorMsg    string            `dynamodbav:"error_msg,omitempty"`   // Failure detail
	ErrorCode   string            `dynamodbav:"error_code,omitempty"`  // Provider error code
	RunID       string            `dynamodbav:"run_id,omitempty"`      // KSUID of the last command
	CreatedAt   int64             `dynamodbav:"created_at"`            // Unix timestamp
	UpdatedAt   int64             `dynamodbav:"updated_at"`            // Unix timestamp
}

// GetID returns the ID for this record
func (r *Record) GetID() ID {
	return ID(fmt.Sprintf("%s:%s", r.PK, r.SK))
}

func fromResource(r *resource.Record) *Record {
	return &Record{
		PK:          NewPK(r.Namespace),
		SK:          r.Kind.String(),
		Name:        r.Name,
		Identifiers: r.Identifiers,
		Status:      r.Status.String(),
		ErrorMsg:    r.Error,
		ErrorCode:   r.ErrorCode,
		RunID:       r.RunID,
		CreatedAt:   unix(r.CreatedAt),
		UpdatedAt:   unix(r.UpdatedAt),
	}
}

func (r *Record) toResource() *resource.Record {
	return &resource.Record{
		Namespace:   r.PK.String(),
		Kind:        resource.Kind(r.SK),
		Name:        r.Name,
		Identifiers: r.Identifiers,
		Status:      resource.Status(r.Status),
		Error:       r.ErrorMsg,
		ErrorCode:   r.ErrorCode,
		RunID:       r.RunID,
		CreatedAt:   fromUnix(r.CreatedAt),
		UpdatedAt:   fromUnix(r.UpdatedAt),
	}
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

// DAO provides data access operations for resource records. It satisfies
// state.Store.
type DAO struct {
	db    *ddb.DDB
	table *ddb.Table
}

// New creates a new DAO instance
func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		db:    db,
		table: table,
	}
}

// CreateTableIfNotExists creates the backing table.
func (d *DAO) CreateTableIfNotExists(ctx context.Context) error {
	if err := d.table.CreateTableIfNotExists(ctx); err != nil {
		return fmt.Errorf("failed to create resource table: %w", err)
	}
	return nil
}

// Find retrieves a record by ID
// Returns nil if not found
func (d *DAO) Find(ctx context.Context, id ID) (*Record, error) {
	namespace, kind, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	var record Record
	err = d.table.Get(NewPK(namespace).String()).
		Range(kind.String()).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}

	if record.PK == "" && record.SK == "" {
		return nil, nil
	}

	return &record, nil
}

// Get returns the record for kind, or nil when none exists.
func (d *DAO) Get(ctx context.Context, namespace string, kind resource.Kind) (*resource.Record, error) {
	if namespace == "" {
		return nil, errors.ErrNamespaceEmpty
	}
	record, err := d.Find(ctx, NewID(namespace, kind))
	if err != nil || record == nil {
		return nil, err
	}
	return record.toResource(), nil
}

// Put replaces the record for record.Kind.
func (d *DAO) Put(ctx context.Context, record *resource.Record) error {
	if record == nil || record.Namespace == "" {
		return errors.ErrNamespaceEmpty
	}
	if !record.Kind.Valid() {
		return fmt.Errorf("%w: %s", errors.ErrUnknownKind, record.Kind)
	}

	if err := d.table.Put(fromResource(record)).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to put resource: %w", err)
	}
	return nil
}

// Remove deletes the record for kind.
func (d *DAO) Remove(ctx context.Context, namespace string, kind resource.Kind) error {
	if namespace == "" {
		return errors.ErrNamespaceEmpty
	}

	err := d.table.Delete(NewPK(namespace).String()).
		Range(kind.String()).
		RunWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	return nil
}

// Query returns all records for a namespace
func (d *DAO) Query(ctx context.Context, pk PK) ([]Record, error) {
	var records []Record

	err := d.table.Query("#PK = ?", pk.String()).
		ConsistentRead(true).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}

	return records, nil
}

// List returns every record in namespace ordered by kind declaration.
func (d *DAO) List(ctx context.Context, namespace string) ([]*resource.Record, error) {
	if namespace == "" {
		return nil, errors.ErrNamespaceEmpty
	}

	records, err := d.Query(ctx, NewPK(namespace))
	if err != nil {
		return nil, err
	}

	byKind := make(map[resource.Kind]*resource.Record, len(records))
	var unknown []*resource.Record
	for i := range records {
		r := records[i].toResource()
		if r.Kind.Valid() {
			byKind[r.Kind] = r
		} else {
			unknown = append(unknown, r)
		}
	}

	var out []*resource.Record
	for _, kind := range resource.Kinds {
		if r, ok := byKind[kind]; ok {
			out = append(out, r)
		}
	}
	return append(out, unknown...), nil
}
