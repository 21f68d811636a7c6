package sequencer

import (
	"fmt"
	"regexp"

	"github.com/xkilldash9x/autoform/api/schemas"
)

var portalURLPattern = regexp.MustCompile(`(?i)^https?://`)

// ValidationError rejects a plan before any browser resource is touched.
// Reason is one of schemas.ReasonBadPlan or schemas.ReasonBadPortal.
type ValidationError struct {
	Reason string
	Msg    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Msg)
}

// Validate checks the plan's mode and portal URL.
func Validate(plan *schemas.FillPlan) error {
	if plan == nil || plan.Mode != schemas.ModeAutoForm {
		return &ValidationError{Reason: schemas.ReasonBadPlan, Msg: fmt.Sprintf("plan missing or mode is not %s", schemas.ModeAutoForm)}
	}
	if !portalURLPattern.MatchString(plan.PortalURL) {
		return &ValidationError{Reason: schemas.ReasonBadPortal, Msg: "portal_url must start with http:// or https://"}
	}
	return nil
}
