package userstore

import "fmt"

type (
	InvalidRecord struct {
		Field  string
		Reason string
	}

	RecordNotFound struct {
		Kind string
		ID   int64
	}

	InvalidUsername struct {
		Username string
	}

	// StoreNotFound means username was never provisioned or its store was
	// destroyed.
	StoreNotFound struct {
		Username string
	}
)

func (i InvalidRecord) Error() string {
	return fmt.Sprintf("%v %v", i.Field, i.Reason)
}

func (r RecordNotFound) Error() string {
	return fmt.Sprintf("%v %v not found", r.Kind, r.ID)
}

func (i InvalidUsername) Error() string {
	return fmt.Sprintf("username %q cannot be used to address a store", i.Username)
}

func (s StoreNotFound) Error() string {
	return fmt.Sprintf("no store provisioned for %v", s.Username)
}
