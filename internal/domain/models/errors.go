package models

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy. Only ErrDataQuality aborts a run; the rest degrade and are counted.
var (
	ErrDataInsufficient      = errors.New("data insufficient")
	ErrDataQuality           = errors.New("data quality")
	ErrProposalInvalid       = errors.New("proposal invalid")
	ErrDivisionDegenerate    = errors.New("division degenerate")
	ErrClassifierUnavailable = errors.New("classifier unavailable")
)

// DataQualityError pinpoints the first offending bar of an input series.
type DataQualityError struct {
	Index     int
	Timestamp time.Time
	Reason    string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality: bar %d (%s): %s", e.Index, e.Timestamp.UTC().Format(time.RFC3339), e.Reason)
}

// Is makes errors.Is(err, ErrDataQuality) match.
func (e *DataQualityError) Is(target error) bool { return target == ErrDataQuality }

// ProposalError carries the reason a strategy proposal was discarded.
type ProposalError struct {
	Reason string
}

func (e *ProposalError) Error() string { return "proposal invalid: " + e.Reason }

func (e *ProposalError) Is(target error) bool { return target == ErrProposalInvalid }

func invalidProposal(format string, args ...interface{}) error {
	return &ProposalError{Reason: fmt.Sprintf(format, args...)}
}
