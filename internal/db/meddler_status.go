package db

import (
	"fmt"

	"github.com/goran-ethernal/TzIndexor/pkg/model"
	"github.com/russross/meddler"
)

func init() {
	meddler.Default = meddler.SQLite
	meddler.Register("opstatus", StatusMeddler{})
}

// StatusMeddler stores model.OperationStatus as its node name ("applied", "backtracked", "failed").
// Reading an unknown name fails instead of producing a zero status.
type StatusMeddler struct{}

func (m StatusMeddler) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	return new(string), nil
}

func (m StatusMeddler) PostRead(fieldAddr, scanTarget interface{}) error {
	s, ok := scanTarget.(*string)
	if !ok {
		return fmt.Errorf("expected *string, got %T", scanTarget)
	}

	ptr, ok := fieldAddr.(*model.OperationStatus)
	if !ok {
		return fmt.Errorf("expected *model.OperationStatus, got %T", fieldAddr)
	}

	status, known := model.ParseOperationStatus(*s)
	if !known {
		return fmt.Errorf("unknown operation status %q", *s)
	}
	*ptr = status

	return nil
}

func (m StatusMeddler) PreWrite(field interface{}) (saveValue interface{}, err error) {
	status, ok := field.(model.OperationStatus)
	if !ok {
		return nil, fmt.Errorf("expected model.OperationStatus, got %T", field)
	}

	if _, known := model.ParseOperationStatus(status.String()); !known {
		return nil, fmt.Errorf("refusing to store unknown operation status %d", int(status))
	}

	return status.String(), nil
}
