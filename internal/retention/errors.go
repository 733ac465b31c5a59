package retention

import "fmt"

// ConfigurationError rejects a sweep before anything is listed or deleted.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s=%q %s", e.Field, e.Value, e.Reason)
}

// ListingError means the remote listing could not be read completely.
// No deletions are attempted after one.
type ListingError struct {
	Bucket string
	Prefix string
	Err    error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("list s3://%s/%s: %v", e.Bucket, e.Prefix, e.Err)
}

func (e *ListingError) Unwrap() error { return e.Err }

// DeleteError records one failed delete. It does not stop the sweep.
type DeleteError struct {
	Key string
	Err error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete %s: %v", e.Key, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }
